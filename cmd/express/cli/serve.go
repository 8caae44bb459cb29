package cli

import (
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	express "github.com/orcfax/protocol-server"
	"github.com/orcfax/protocol-server/cmd/express/cli/config"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feed loop and HTTP server",
	Long: `Serve generates a signing key, writes keys.json and index.html to the static
directory, and then publishes both feeds every interval until interrupted.

Examples:
  express serve
  express serve --port 9000
  express serve --static ./public --archive ./public/archive --interval 10s`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", "", "Listen address (default :8001)")
	f.IntVar(&servePort, "port", 0, "Listen port, overrides the port of --listen")
	f.String("static", "", "Directory for latest files (default static)")
	f.String("archive", "", "Archive root directory (default archive)")
	f.Duration("interval", 0, "Delay between feed cycles (default 30s)")
	f.Int("window", 0, "Samples in the rolling average (default 120)")
	f.Bool("no-archive", false, "Disable archiving")
	f.String("nats-url", "", "Forward payloads to this NATS server")

	_ = viper.BindPFlag("server.listen", f.Lookup("listen"))
	_ = viper.BindPFlag("paths.static", f.Lookup("static"))
	_ = viper.BindPFlag("paths.archive", f.Lookup("archive"))
	_ = viper.BindPFlag("feed.interval", f.Lookup("interval"))
	_ = viper.BindPFlag("feed.window", f.Lookup("window"))
	_ = viper.BindPFlag("nats.url", f.Lookup("nats-url"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if noArchive, _ := cmd.Flags().GetBool("no-archive"); noArchive {
		cfg.Feed.Archive = false
	}

	addr := cfg.Server.Listen
	if cmd.Flags().Changed("port") {
		host, _, splitErr := net.SplitHostPort(addr)
		if splitErr != nil {
			host = ""
		}
		addr = net.JoinHostPort(host, strconv.Itoa(servePort))
	}

	logger := newLogger(os.Stderr, cfg.Log.Format)
	opts := []express.Option{
		express.WithStaticDir(cfg.Paths.Static),
		express.WithInterval(cfg.Feed.Interval),
		express.WithWindowSize(cfg.Feed.Window),
		express.WithFeedPrefix(cfg.Feed.Prefix),
		express.WithEpochID(cfg.Feed.EpochID),
		express.WithNATS(cfg.NATS.URL, cfg.NATS.Subject),
		express.WithLogger(logger),
	}
	if cfg.Feed.Archive {
		opts = append(opts, express.WithArchiveDir(cfg.Paths.Archive))
	} else {
		opts = append(opts, express.WithoutArchive())
	}

	ctx, cancel := signalContext()
	defer cancel()

	svc, err := express.NewService(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("starting express",
		"version", version,
		"addr", addr,
		"static", cfg.Paths.Static,
		"archive", cfg.Feed.Archive,
		"interval", cfg.Feed.Interval,
	)
	return svc.Run(ctx, addr)
}

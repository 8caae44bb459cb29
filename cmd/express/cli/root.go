// Package cli implements the express command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	express "github.com/orcfax/protocol-server"
	"github.com/orcfax/protocol-server/cmd/express/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	cfgFile   string
	verbose   bool
	logFormat string
)

var errInvalidSignature = errors.New("signature does not verify")

var rootCmd = &cobra.Command{
	Use:   "express",
	Short: "Serve signed telemetry feeds",
	Long: `Express samples a value on an interval, signs it together with its rolling
average and the current hour epoch, and publishes the results as latest files,
an append-only archive, and HTTP endpoints.

Every payload can be verified offline with the public key from keys.json or
the key line stored next to it in the archive.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return initConfig() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/express/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// initConfig layers defaults, the config file, and EXPRESS_* environment
// variables into the global viper instance.
func initConfig() error {
	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("EXPRESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the process logger. Timestamps are rendered in UTC.
func newLogger(w io.Writer, format string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.TimeValue(a.Value.Time().UTC())
			}
			return a
		},
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// formatError converts express errors to user-friendly messages.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, express.ErrMalformedInput):
		return fmt.Sprintf("Error: malformed input: %v", err)
	case errors.Is(err, express.ErrKeyGeneration):
		return "Error: could not generate a signing key (entropy source failed)"
	case errors.Is(err, errInvalidSignature):
		return "Error: signature does not verify"
	case errors.Is(err, express.ErrInvalidSignature):
		return fmt.Sprintf("Error: archive contains records that do not verify: %v", err)
	case errors.Is(err, express.ErrInvalidRecord):
		return fmt.Sprintf("Error: invalid archive file: %v", err)
	case errors.Is(err, express.ErrPathTraversal):
		return "Error: path traversal detected (security violation)"
	case errors.Is(err, context.Canceled):
		return "Error: operation canceled"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

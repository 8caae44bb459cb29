package express

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orcfax/protocol-server/internal/archive"
	"github.com/orcfax/protocol-server/internal/envelope"
	"github.com/orcfax/protocol-server/internal/feed"
	"github.com/orcfax/protocol-server/internal/keys"
	"github.com/orcfax/protocol-server/internal/metrics"
	"github.com/orcfax/protocol-server/internal/publish"
	"github.com/orcfax/protocol-server/internal/server"
	"github.com/orcfax/protocol-server/internal/sink"
)

// Service wires key material, the feed generator, the archive, and the HTTP
// server for one process.
type Service struct {
	keys      *keys.KeyMaterial
	feedID    string
	nodeID    string
	generator *feed.Generator
	archive   *archive.Writer
	publisher *publish.Publisher
	metrics   *metrics.Metrics
	server    *server.Server
	nats      *sink.NATS
	logger    *slog.Logger

	// configuration
	staticDir       string
	archiveDir      string
	archiveDisabled bool
	interval        time.Duration
	windowSize      int
	feedPrefix      string
	epochID         string
	convention      Convention
	entropy         io.Reader
	seed            []byte
	natsURL         string
	natsSubject     string
	clock           clock.Clock
	sampler         func() int
}

// NewService creates the signing key, writes keys.json and the landing page,
// and prepares the feed loop. Call Run to start it.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		staticDir:   "static",
		archiveDir:  "archive",
		interval:    feed.DefaultInterval,
		feedPrefix:  feed.DefaultPrefix,
		epochID:     feed.DefaultEpochID,
		convention:  HexJSON,
		natsSubject: sink.DefaultSubject,
		clock:       clock.New(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var err error
	if s.seed != nil {
		s.keys, err = keys.FromSeed(s.seed)
	} else {
		s.keys, err = keys.Generate(s.entropy)
	}
	if err != nil {
		return nil, err
	}

	if s.feedID == "" {
		if s.feedID, err = feed.NewFeedID(s.feedPrefix); err != nil {
			return nil, err
		}
	}
	s.nodeID = uuid.NewString()

	if err := s.setupPublisher(); err != nil {
		return nil, err
	}
	if err := s.setupArchive(); err != nil {
		return nil, err
	}
	if s.natsURL != "" {
		s.nats, err = sink.Connect(s.natsURL,
			sink.WithSubject(s.natsSubject),
			sink.WithName("express-"+s.nodeID),
			sink.WithLogger(s.logger),
		)
		if err != nil {
			return nil, err
		}
	}

	s.metrics = metrics.New()
	if err := s.setupGenerator(); err != nil {
		s.Close()
		return nil, err
	}

	serverOpts := []server.Option{
		server.WithIdentity(s.feedID, s.nodeID),
		server.WithStaticDir(s.staticDir),
		server.WithMetrics(s.metrics),
		server.WithLogger(s.logger),
	}
	if s.archive != nil {
		serverOpts = append(serverOpts, server.WithArchive(s.archive.FS()))
	}
	if s.server, err = server.New(s.generator, s.keys, serverOpts...); err != nil {
		s.Close()
		return nil, err
	}

	export := s.keys.ExportPublic()
	s.logger.Info("service ready",
		"feed_id", s.feedID,
		"node_id", s.nodeID,
		"ed25519", export.Ed25519,
		"convention", s.convention,
	)
	return s, nil
}

func (s *Service) setupPublisher() error {
	pub, err := publish.New(s.staticDir, publish.WithLogger(s.logger))
	if err != nil {
		return err
	}
	if err := pub.WriteKeys(s.keys.ExportPublic()); err != nil {
		return fmt.Errorf("write keys: %w", err)
	}
	if err := pub.WriteIndex(landingPage(!s.archiveDisabled)); err != nil {
		return fmt.Errorf("write landing page: %w", err)
	}
	s.publisher = pub
	return nil
}

func (s *Service) setupArchive() error {
	if s.archiveDisabled {
		return nil
	}
	aw, err := archive.NewWriter(s.archiveDir, s.keys,
		archive.WithClock(s.clock),
		archive.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	if err := aw.RegenerateIndex(); err != nil {
		return err
	}
	s.archive = aw
	return nil
}

func (s *Service) setupGenerator() error {
	genOpts := []feed.Option{
		feed.WithClock(s.clock),
		feed.WithInterval(s.interval),
		feed.WithObserver(s.observe),
		feed.WithLogger(s.logger),
	}
	if s.windowSize > 0 {
		genOpts = append(genOpts, feed.WithWindowSize(s.windowSize))
	}
	if s.sampler != nil {
		genOpts = append(genOpts, feed.WithSampler(s.sampler))
	}
	if s.archive != nil {
		genOpts = append(genOpts, feed.WithArchive(s.archive))
	}
	if s.nats != nil {
		genOpts = append(genOpts, feed.WithSink(s.nats))
	}

	gen, err := feed.NewGenerator(
		envelope.NewBuilder(s.keys, s.convention),
		s.publisher,
		[]feed.Descriptor{feed.ValueFeed(s.feedID), feed.EpochFeed(s.epochID)},
		genOpts...,
	)
	if err != nil {
		return err
	}
	s.generator = gen
	return nil
}

func (s *Service) observe(r feed.Report) {
	s.metrics.ObserveCycle(metrics.CycleResult{
		Unix:     r.Sample.Time.Unix(),
		Seconds:  r.Duration.Seconds(),
		Current:  float64(r.Sample.Current),
		Average:  r.Sample.Average,
		Archived: len(r.Archived),
		Failed:   r.Err != nil,
	})
}

func landingPage(withArchive bool) publish.Page {
	page := publish.Page{
		Feeds: []publish.Link{
			{Title: "public key", Href: publish.KeysFile},
			{Title: "current value and average", Href: feed.ValueFile},
			{Title: "hourly epoch", Href: feed.EpochFile},
		},
	}
	for _, ep := range []string{"/data", "/data_debug", "/data_plural", "/pkey", "/pem", "/verify", "/verify_cbor", "/metrics"} {
		page.Endpoints = append(page.Endpoints, publish.Link{Title: ep, Href: ep})
	}
	if withArchive {
		page.Endpoints = append(page.Endpoints, publish.Link{Title: "archive", Href: "/archive/" + archive.IndexPage})
	}
	return page
}

// FeedID returns the value feed identifier.
func (s *Service) FeedID() string { return s.feedID }

// NodeID returns the identifier of this process instance.
func (s *Service) NodeID() string { return s.nodeID }

// PublicKey returns the encodings of the verification key.
func (s *Service) PublicKey() PublicKeyExport { return s.keys.ExportPublic() }

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler { return s.server.Handler() }

// Latest returns the most recent value feed payload.
func (s *Service) Latest() (*FeedPayload, bool) {
	return s.generator.Latest(feed.ValueFile)
}

// LatestEpoch returns the most recent epoch feed payload.
func (s *Service) LatestEpoch() (*FeedPayload, bool) {
	return s.generator.Latest(feed.EpochFile)
}

// Cycle runs one feed cycle immediately. It must not be called while Run
// is active.
func (s *Service) Cycle(ctx context.Context) error {
	r := s.generator.RunOnce(ctx)
	s.observe(r)
	return r.Err
}

// Run starts the feed loop and the HTTP server on addr, and blocks until
// ctx is cancelled or the server fails.
func (s *Service) Run(ctx context.Context, addr string) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.server.ListenAndServe(ctx, addr)
	})
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.server.Serve(ctx, ln)
	})
}

func (s *Service) run(ctx context.Context, serve func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.generator.Run(gctx)
	})
	g.Go(func() error {
		return serve(gctx)
	})
	return g.Wait()
}

// Close releases the NATS connection, if any.
func (s *Service) Close() error {
	if s.nats != nil {
		return s.nats.Close()
	}
	return nil
}

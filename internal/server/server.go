// Package server exposes feed products, key material, and signature
// verification over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/feed"
	"github.com/orcfax/protocol-server/internal/metrics"
	"github.com/orcfax/protocol-server/internal/verify"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8001"

const shutdownTimeout = 5 * time.Second

// GzipETagSuffix is inserted into the ETag of gzip-compressed responses.
const GzipETagSuffix = "-gzip"

// Source provides the latest feed products.
// *feed.Generator satisfies it.
type Source interface {
	Latest(file string) (*core.FeedPayload, bool)
	LatestDebug(file string) (*core.DebugPayload, bool)
}

// KeySource provides the public key encodings.
// *keys.KeyMaterial satisfies it.
type KeySource interface {
	ExportPublic() core.PublicKeyExport
	ExportPublicPEM() ([]byte, error)
}

// Server routes HTTP requests to feed products and utilities.
type Server struct {
	feeds     Source
	keys      KeySource
	feedID    string
	nodeID    string
	valueFile string
	epochFile string
	staticDir string
	archive   fs.FS
	metrics   *metrics.Metrics
	logger    *slog.Logger

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithIdentity sets the feed and node identifiers sent on every read response.
func WithIdentity(feedID, nodeID string) Option {
	return func(s *Server) {
		s.feedID = feedID
		s.nodeID = nodeID
	}
}

// WithFeedFiles sets which feeds back /data and /data_plural.
func WithFeedFiles(value, epoch string) Option {
	return func(s *Server) {
		s.valueFile = value
		s.epochFile = epoch
	}
}

// WithStaticDir serves dir at the site root.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithArchive serves fsys under /archive/.
func WithArchive(fsys fs.FS) Option {
	return func(s *Server) {
		s.archive = fsys
	}
}

// WithMetrics enables /metrics and request counting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets a logger for the server. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New builds a server over feeds and keys.
func New(feeds Source, keys KeySource, opts ...Option) (*Server, error) {
	s := &Server{
		feeds:     feeds,
		keys:      keys,
		valueFile: feed.ValueFile,
		epochFile: feed.EpochFile,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	gzip, err := gzhttp.NewWrapper(gzhttp.SuffixETag(GzipETagSuffix))
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}
	s.handler = gzip(s.logRequests(s.routes()))
	return s, nil
}

// Handler returns the root handler, gzip-compressing responses for clients
// that accept it. Compressed responses carry the ETag with GzipETagSuffix.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// GET patterns also match HEAD.
	mux.HandleFunc("GET /data", s.handleFeed(s.valueFile))
	mux.HandleFunc("GET /data_plural", s.handleFeed(s.epochFile))
	mux.HandleFunc("GET /data_debug", s.handleDebug(s.valueFile))
	mux.HandleFunc("GET /pkey", s.handlePublicKey)
	mux.HandleFunc("GET /pem", s.handlePEM)
	mux.HandleFunc("GET /verify", s.handleVerify(verify.RawKey, ExamplePublicKey))
	mux.HandleFunc("GET /verify_cbor", s.handleVerify(verify.CBORKey, ExamplePublicKeyCBOR))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.archive != nil {
		mux.Handle("GET /archive/", http.StripPrefix("/archive/", http.FileServerFS(s.archive)))
	}
	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

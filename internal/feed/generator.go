// Package feed runs the periodic sample, sign, publish cycle.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/envelope"
	"github.com/orcfax/protocol-server/internal/safepath"
	"github.com/orcfax/protocol-server/internal/window"
)

// DefaultInterval is the delay between cycles.
const DefaultInterval = 30 * time.Second

// LatestWriter replaces a named latest file.
type LatestWriter interface {
	WriteJSON(name string, v any) error
}

// Archiver appends payloads under a logical feed name.
type Archiver interface {
	Append(payload *core.FeedPayload, logical string) (string, error)
}

// Sink receives every published payload.
type Sink interface {
	Publish(ctx context.Context, file string, payload *core.FeedPayload) error
}

// Snapshot is the output of the most recent cycle.
type Snapshot struct {
	Cycle    uint64
	Sample   Sample
	Payloads map[string]*core.FeedPayload
	Debug    map[string]*core.DebugPayload
}

// Report describes a finished cycle.
type Report struct {
	Cycle    uint64
	Sample   Sample
	Archived []string
	Duration time.Duration
	Err      error
}

// Generator produces signed payloads for a fixed set of feeds.
type Generator struct {
	builder  *envelope.Builder
	window   *window.Rolling
	feeds    []Descriptor
	latest   LatestWriter
	archive  Archiver
	sinks    []Sink
	clock    clock.Clock
	interval time.Duration
	sample   func() int
	observe  func(Report)
	logger   *slog.Logger

	cycles   uint64
	snapshot atomic.Pointer[Snapshot]
}

// Option configures a Generator.
type Option func(*Generator)

// WithArchive enables archiving for feeds that request it.
func WithArchive(a Archiver) Option {
	return func(g *Generator) {
		g.archive = a
	}
}

// WithSink adds a sink that receives every payload.
func WithSink(s Sink) Option {
	return func(g *Generator) {
		g.sinks = append(g.sinks, s)
	}
}

// WithClock sets the clock used for timestamps and scheduling.
func WithClock(c clock.Clock) Option {
	return func(g *Generator) {
		g.clock = c
	}
}

// WithInterval sets the delay between cycles.
func WithInterval(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithWindowSize sets the number of samples averaged by the value feed.
func WithWindowSize(n int) Option {
	return func(g *Generator) {
		g.window = window.New(n)
	}
}

// WithSampler replaces the random sample source.
func WithSampler(fn func() int) Option {
	return func(g *Generator) {
		g.sample = fn
	}
}

// WithObserver registers a function called after every cycle, before the
// generator waits for the next one.
func WithObserver(fn func(Report)) Option {
	return func(g *Generator) {
		g.observe = fn
	}
}

// WithLogger sets a logger for the generator. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator returns a generator that signs with builder and writes the
// latest payload of every feed through latest.
func NewGenerator(builder *envelope.Builder, latest LatestWriter, feeds []Descriptor, opts ...Option) (*Generator, error) {
	if builder == nil {
		return nil, errors.New("feed: builder is required")
	}
	if latest == nil {
		return nil, errors.New("feed: latest writer is required")
	}
	if len(feeds) == 0 {
		return nil, errors.New("feed: at least one feed is required")
	}
	seen := make(map[string]bool, len(feeds))
	for _, d := range feeds {
		if d.File == "" || d.Data == nil {
			return nil, fmt.Errorf("feed: descriptor %q is incomplete", d.ID)
		}
		if err := safepath.ValidateName(d.File); err != nil {
			return nil, fmt.Errorf("feed: descriptor %q: %w", d.ID, err)
		}
		if seen[d.File] {
			return nil, fmt.Errorf("feed: duplicate file %q", d.File)
		}
		seen[d.File] = true
	}

	g := &Generator{
		builder:  builder,
		window:   window.New(window.DefaultSize),
		feeds:    feeds,
		latest:   latest,
		clock:    clock.New(),
		interval: DefaultInterval,
		sample:   defaultSample,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// defaultSample draws uniformly from [-3, 40].
func defaultSample() int {
	return rand.IntN(44) - 3
}

// Snapshot returns the output of the most recent cycle, or nil before the
// first cycle.
func (g *Generator) Snapshot() *Snapshot {
	return g.snapshot.Load()
}

// Latest returns the most recent payload for the feed with the given file name.
func (g *Generator) Latest(file string) (*core.FeedPayload, bool) {
	snap := g.snapshot.Load()
	if snap == nil {
		return nil, false
	}
	p, ok := snap.Payloads[file]
	return p, ok
}

// LatestDebug returns the most recent debug payload for the feed with the
// given file name.
func (g *Generator) LatestDebug(file string) (*core.DebugPayload, bool) {
	snap := g.snapshot.Load()
	if snap == nil {
		return nil, false
	}
	p, ok := snap.Debug[file]
	return p, ok
}

// Run executes cycles until ctx is cancelled. Cycle errors are logged and
// the loop continues. Run returns nil on cancellation.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info("feed generator started", "interval", g.interval, "feeds", len(g.feeds))
	for {
		if ctx.Err() != nil {
			return nil
		}

		report := g.RunOnce(ctx)
		if report.Err != nil {
			g.logger.Warn("feed cycle failed", "cycle", report.Cycle, "error", report.Err)
		}

		timer := g.clock.Timer(g.interval)
		if g.observe != nil {
			g.observe(report)
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			g.logger.Info("feed generator stopped", "cycles", report.Cycle)
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce executes a single cycle: sample, update the window, build every
// feed, then publish. Every feed is attempted even when an earlier one fails.
func (g *Generator) RunOnce(ctx context.Context) Report {
	start := g.clock.Now()
	g.cycles++

	v := g.sample()
	g.window.Push(v)
	sample := Sample{Current: v, Average: g.window.Mean(), Time: start}

	snap := &Snapshot{
		Cycle:    g.cycles,
		Sample:   sample,
		Payloads: make(map[string]*core.FeedPayload, len(g.feeds)),
		Debug:    make(map[string]*core.DebugPayload),
	}

	var errs error
	var built []Descriptor
	for _, d := range g.feeds {
		if err := g.build(d, sample, snap); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("build %s: %w", d.File, err))
			continue
		}
		built = append(built, d)
	}
	g.snapshot.Store(snap)

	report := Report{Cycle: g.cycles, Sample: sample}
	for _, d := range built {
		archived, err := g.publish(ctx, d, snap.Payloads[d.File])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish %s: %w", d.File, err))
		}
		if archived != "" {
			report.Archived = append(report.Archived, archived)
		}
	}

	report.Err = errs
	report.Duration = g.clock.Since(start)
	g.logger.Debug("feed cycle complete",
		"cycle", report.Cycle,
		"current", sample.Current,
		"average", sample.Average,
		"duration", report.Duration,
	)
	return report
}

func (g *Generator) build(d Descriptor, s Sample, snap *Snapshot) error {
	data := d.Data(s)
	payload, err := g.builder.Build(data, d.Description)
	if err != nil {
		return err
	}
	payload.FeedID = d.ID
	snap.Payloads[d.File] = payload

	if d.Debug {
		debug, err := g.builder.BuildDebug(data, d.Description)
		if err != nil {
			return err
		}
		snap.Debug[d.File] = debug
	}
	return nil
}

func (g *Generator) publish(ctx context.Context, d Descriptor, payload *core.FeedPayload) (archived string, errs error) {
	if err := g.latest.WriteJSON(d.File, payload); err != nil {
		errs = multierr.Append(errs, err)
	}
	if d.Archive && g.archive != nil {
		path, err := g.archive.Append(payload, d.File)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("archive: %w", err))
		} else {
			archived = path
		}
	}
	for _, s := range g.sinks {
		if err := s.Publish(ctx, d.File, payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sink: %w", err))
		}
	}
	return archived, errs
}

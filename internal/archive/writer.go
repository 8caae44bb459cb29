// Package archive maintains the append-only, time-bucketed log of every
// published feed payload.
//
// Layout under the archive root:
//
//	archive.html                          index of the current year bucket
//	{yearUnix}/{dayUnix}-{feed}.jsonl     two lines per write: payload, public key
//
// A reader pairs each payload line with the key line that follows it to
// verify provenance without separate key distribution.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/safepath"
)

const (
	// RecordExt is the extension of line-delimited archive files.
	RecordExt = ".jsonl"

	// IndexPage is the browsable listing regenerated after every append.
	IndexPage = "archive.html"
)

// KeySource exposes the public key paired with every archived payload.
type KeySource interface {
	ExportPublic() core.PublicKeyExport
}

// Writer appends feed payloads to the archive. It expects to be the only
// writer of its root.
type Writer struct {
	fsys   *osFS
	keys   KeySource
	clock  clock.Clock
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock sets the clock used to pick buckets. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(w *Writer) {
		w.clock = c
	}
}

// WithLogger sets a logger for the writer. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter creates a writer rooted at dir, creating dir if needed.
func NewWriter(dir string, keys KeySource, opts ...Option) (*Writer, error) {
	w := &Writer{
		fsys:   OSFS(dir),
		keys:   keys,
		clock:  clock.New(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.fsys.MkdirAll("."); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return w, nil
}

// FS returns the archive root as a read-only filesystem.
func (w *Writer) FS() fs.ReadDirFS { return w.fsys }

// EnsureBucket creates the year directory for b. It is idempotent.
func (w *Writer) EnsureBucket(b Bucket) error {
	if err := w.fsys.MkdirAll(b.Dir()); err != nil {
		return fmt.Errorf("create bucket %s: %w", b.Dir(), err)
	}
	return nil
}

// Append writes payload and the current public key as two adjacent lines to
// the day-bucket file for logical, then regenerates the index page.
// It returns the archive-relative path written to.
func (w *Writer) Append(payload *core.FeedPayload, logical string) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("%w: nil payload", core.ErrInvalidRecord)
	}
	if err := safepath.ValidateName(logical); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b := ComputeBucket(w.clock.Now())
	if err := w.EnsureBucket(b); err != nil {
		return "", err
	}

	record, err := encodeRecord(payload, w.keys.ExportPublic())
	if err != nil {
		return "", err
	}

	name := b.Path(logical)
	f, err := w.fsys.OpenAppend(name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	// One write call keeps the data and key lines adjacent.
	if _, err := f.Write(record); err != nil {
		f.Close()
		return "", fmt.Errorf("append %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	w.logger.Debug("archived payload", "feed", payload.FeedID, "file", name)

	if err := w.writeIndex(b); err != nil {
		return name, err
	}
	return name, nil
}

func encodeRecord(payload *core.FeedPayload, key core.PublicKeyExport) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode payload line: %w", err)
	}
	if err := enc.Encode(key); err != nil {
		return nil, fmt.Errorf("encode key line: %w", err)
	}
	return buf.Bytes(), nil
}

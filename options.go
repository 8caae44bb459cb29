package express

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Option configures a Service.
type Option func(*Service) error

// WithStaticDir sets the directory for latest files, keys.json, and the
// landing page. Defaults to "static".
func WithStaticDir(dir string) Option {
	return func(s *Service) error {
		if dir == "" {
			return errors.New("static directory must not be empty")
		}
		s.staticDir = dir
		return nil
	}
}

// WithArchiveDir sets the archive root. Defaults to "archive".
func WithArchiveDir(dir string) Option {
	return func(s *Service) error {
		if dir == "" {
			return errors.New("archive directory must not be empty")
		}
		s.archiveDir = dir
		return nil
	}
}

// WithoutArchive disables archiving.
func WithoutArchive() Option {
	return func(s *Service) error {
		s.archiveDisabled = true
		return nil
	}
}

// WithInterval sets the delay between feed cycles. Defaults to 30s.
func WithInterval(d time.Duration) Option {
	return func(s *Service) error {
		if d <= 0 {
			return errors.New("feed interval must be positive")
		}
		s.interval = d
		return nil
	}
}

// WithWindowSize sets how many samples the rolling average covers.
// Defaults to 120.
func WithWindowSize(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return errors.New("window size must be positive")
		}
		s.windowSize = n
		return nil
	}
}

// WithFeedPrefix sets the prefix of the generated value feed identifier.
func WithFeedPrefix(prefix string) Option {
	return func(s *Service) error {
		s.feedPrefix = prefix
		return nil
	}
}

// WithFeedID sets the value feed identifier instead of generating one.
func WithFeedID(id string) Option {
	return func(s *Service) error {
		s.feedID = id
		return nil
	}
}

// WithEpochID sets the epoch feed identifier.
func WithEpochID(id string) Option {
	return func(s *Service) error {
		if id == "" {
			return errors.New("epoch feed id must not be empty")
		}
		s.epochID = id
		return nil
	}
}

// WithConvention sets the signing convention. Defaults to HexJSON.
func WithConvention(c Convention) Option {
	return func(s *Service) error {
		s.convention = c
		return nil
	}
}

// WithEntropy sets the randomness source for key generation.
// Defaults to crypto/rand.
func WithEntropy(r io.Reader) Option {
	return func(s *Service) error {
		s.entropy = r
		return nil
	}
}

// WithSeed derives the signing key from a 32-byte Ed25519 seed instead of
// generating a fresh one.
func WithSeed(seed []byte) Option {
	return func(s *Service) error {
		s.seed = seed
		return nil
	}
}

// WithNATS forwards every published payload to a NATS server.
// An empty url leaves the sink disabled.
func WithNATS(url, subject string) Option {
	return func(s *Service) error {
		s.natsURL = url
		s.natsSubject = subject
		return nil
	}
}

// WithClock sets the clock used for timestamps, scheduling, and archive
// buckets.
func WithClock(c clock.Clock) Option {
	return func(s *Service) error {
		s.clock = c
		return nil
	}
}

// WithSampler replaces the random sample source.
func WithSampler(fn func() int) Option {
	return func(s *Service) error {
		s.sampler = fn
		return nil
	}
}

// WithLogger sets a logger for the service. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

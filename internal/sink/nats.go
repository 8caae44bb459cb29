// Package sink forwards published payloads to a NATS subject tree.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/orcfax/protocol-server/core"
)

// DefaultSubject is the subject prefix payloads are published under.
const DefaultSubject = "orcfax.feeds"

// HeaderFeedID carries the feed identifier on every message.
const HeaderFeedID = "Orcfax-Feed-Id"

type conn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATS publishes each payload as JSON to "<subject>.<feed stem>".
type NATS struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// Option configures a NATS sink.
type Option func(*config)

type config struct {
	subject string
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// WithSubject sets the subject prefix. Defaults to DefaultSubject.
func WithSubject(subject string) Option {
	return func(c *config) {
		if subject != "" {
			c.subject = subject
		}
	}
}

// WithName sets the client connection name reported to the server.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger sets a logger for the sink. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Connect dials url and returns a sink. The client reconnects on its own
// after the initial connection succeeds.
func Connect(url string, opts ...Option) (*NATS, error) {
	cfg := config{
		subject: DefaultSubject,
		name:    "express",
		timeout: 5 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	nc, err := nats.Connect(url,
		nats.Name(cfg.name),
		nats.Timeout(cfg.timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrlRedacted())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("nats sink connected", "url", nc.ConnectedUrlRedacted(), "subject", cfg.subject)
	return newNATS(nc, cfg.subject, logger), nil
}

func newNATS(c conn, subject string, logger *slog.Logger) *NATS {
	return &NATS{conn: c, subject: subject, logger: logger}
}

// Subject returns the subject a feed file is published to.
func Subject(prefix, file string) string {
	stem := strings.TrimSuffix(file, path.Ext(file))
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, stem)
	return prefix + "." + stem
}

// Publish sends payload. The context is checked before sending; NATS
// publishes are buffered and do not block.
func (n *NATS) Publish(ctx context.Context, file string, payload *core.FeedPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	msg := nats.NewMsg(Subject(n.subject, file))
	msg.Data = data
	if payload.FeedID != "" {
		msg.Header.Set(HeaderFeedID, payload.FeedID)
	}
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	n.logger.Debug("published to nats", "subject", msg.Subject, "bytes", len(data))
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

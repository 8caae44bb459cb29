// Package publish writes the "latest" artifacts served from the static directory.
package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/atomicfile"
	"github.com/orcfax/protocol-server/internal/safepath"
)

const (
	// KeysFile holds the public key export, written once at startup.
	KeysFile = "keys.json"

	// IndexFile is the landing page, written once at startup.
	IndexFile = "index.html"
)

// Link is one entry on the landing page.
type Link struct {
	Title string
	Href  string
}

// Page describes the landing page content.
type Page struct {
	Feeds     []Link
	Endpoints []Link
}

// Publisher overwrites files in a single directory.
type Publisher struct {
	dir    string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for the publisher. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New returns a Publisher for dir, creating it if needed.
func New(dir string, opts ...Option) (*Publisher, error) {
	p := &Publisher{
		dir:    dir,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create static directory: %w", err)
	}
	return p, nil
}

// Dir returns the directory files are published to.
func (p *Publisher) Dir() string { return p.dir }

// WriteJSON replaces name with the pretty-printed JSON encoding of v.
func (p *Publisher) WriteJSON(name string, v any) error {
	if err := safepath.ValidateName(name); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := atomicfile.Write(filepath.Join(p.dir, name), buf.Bytes(), 0o644); err != nil {
		return err
	}
	p.logger.Debug("published file", "file", name, "bytes", buf.Len())
	return nil
}

// WriteKeys writes the public key export to KeysFile.
func (p *Publisher) WriteKeys(export core.PublicKeyExport) error {
	return p.WriteJSON(KeysFile, export)
}

// WriteIndex renders the landing page to IndexFile.
func (p *Publisher) WriteIndex(page Page) error {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		return fmt.Errorf("render %s: %w", IndexFile, err)
	}
	return atomicfile.Write(filepath.Join(p.dir, IndexFile), buf.Bytes(), 0o644)
}

var indexTemplate = template.Must(template.New(IndexFile).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=0.6">
<title>Orcfax OE Data Demo</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.blue.min.css">
{{- range .Feeds}}
<link rel="meta" type="application/json" title="{{.Title}}" href="{{.Href}}">
{{- end}}
</head>
<body>
<main class="container">
<h1>Custom Oracle Feed</h1>
<ul>
{{- range .Feeds}}
<li>{{.Title}}: <a href="{{.Href}}">{{.Href}}</a></li>
{{- end}}
</ul>
<h2>endpoints</h2>
<ul>
{{- range .Endpoints}}
<li>endpoint: <a href="{{.Href}}">{{.Title}}</a></li>
{{- end}}
</ul>
</main>
</body>
</html>
`))

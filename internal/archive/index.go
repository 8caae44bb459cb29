package archive

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/orcfax/protocol-server/internal/atomicfile"
)

var indexTemplate = template.Must(template.New(IndexPage).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=0.6">
<title>Orcfax OE Data Archive</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.blue.min.css">
</head>
<body>
<main class="container">
<h1>Archive</h1>
<p>Each file holds two lines per publication: the signed payload, then the public key it was signed with.</p>
<ul>
{{- range .Files}}
<li><a href="{{$.Dir}}/{{.}}">{{.}}</a></li>
{{- end}}
</ul>
</main>
</body>
</html>
`))

// listable reports whether an archive entry belongs in the index page.
func listable(name string) bool {
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, "html")
}

// Files returns the archive files in the year bucket, sorted by name.
// Hidden files and pages are skipped.
func (w *Writer) Files(b Bucket) ([]string, error) {
	entries, err := w.fsys.ReadDir(b.Dir())
	if err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", b.Dir(), err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !listable(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// RegenerateIndex rewrites the index page for the year bucket containing
// the current time.
func (w *Writer) RegenerateIndex() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b := ComputeBucket(w.clock.Now())
	if err := w.EnsureBucket(b); err != nil {
		return err
	}
	return w.writeIndex(b)
}

func (w *Writer) writeIndex(b Bucket) error {
	files, err := w.Files(b)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, struct {
		Dir   string
		Files []string
	}{b.Dir(), files}); err != nil {
		return fmt.Errorf("render %s: %w", IndexPage, err)
	}

	if err := atomicfile.Write(filepath.Join(w.fsys.Root(), IndexPage), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", IndexPage, err)
	}
	return nil
}

package archive

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Compile-time interface implementation checks.
var (
	_ fs.FS        = (*osFS)(nil)
	_ fs.ReadDirFS = (*osFS)(nil)
	_ fs.StatFS    = (*osFS)(nil)
)

// OSFS returns a filesystem rooted at the archive directory.
// Unlike os.DirFS, it also creates directories and opens files for append,
// always confined to root.
func OSFS(root string) *osFS {
	return &osFS{root: root}
}

// osFS is an fs.FS implementation backed by the OS filesystem.
type osFS struct {
	root string
}

// Root returns the directory the filesystem is rooted at.
func (o *osFS) Root() string { return o.root }

// Open implements fs.FS.
//
//nolint:gosec // G304: Path is validated by fs.ValidPath and rooted to o.root
func (o *osFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return os.Open(o.join(name))
}

// ReadDir implements fs.ReadDirFS.
func (o *osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return os.ReadDir(o.join(name))
}

// Stat implements fs.StatFS.
func (o *osFS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	return os.Stat(o.join(name))
}

// MkdirAll creates the named directory and any missing parents.
// It succeeds without change when the directory already exists.
func (o *osFS) MkdirAll(name string) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrInvalid}
	}
	return os.MkdirAll(o.join(name), 0o755)
}

// OpenAppend opens the named file for appending, creating it if needed.
//
//nolint:gosec // G304: Path is validated by fs.ValidPath and rooted to o.root
func (o *osFS) OpenAppend(name string) (*os.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return os.OpenFile(o.join(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func (o *osFS) join(name string) string {
	return filepath.Join(o.root, filepath.FromSlash(name))
}

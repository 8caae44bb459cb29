// Package safepath validates file names that end up joined onto the static
// and archive directories.
package safepath

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/orcfax/protocol-server/core"
)

// ValidateName checks that name is a single, visible path element: no
// separators, no traversal, no null bytes, and no leading dot.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", core.ErrPathTraversal)
	case containsNull(name):
		return fmt.Errorf("%w: null byte in %q", core.ErrPathTraversal, name)
	case isAbsolute(name):
		return fmt.Errorf("%w: absolute path %q", core.ErrPathTraversal, name)
	case containsTraversal(name):
		return fmt.Errorf("%w: %q", core.ErrPathTraversal, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q is not a single path element", core.ErrPathTraversal, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: hidden name %q", core.ErrPathTraversal, name)
	}
	return nil
}

func containsNull(path string) bool {
	return strings.IndexByte(path, 0) >= 0
}

// containsTraversal reports whether any component, split on either
// separator, is "..".
func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

func isAbsolute(path string) bool {
	return filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) ||
		filepath.VolumeName(path) != ""
}

// Package fs provides the file system adapters: source discovery and import
// resolution, fingerprinting and output writing.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// alwaysSkipped directories never hold compilable sources.
var alwaysSkipped = map[string]bool{
	".git":         true,
	".jj":          true,
	"node_modules": true,
}

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every file under root, skipping version control and
// dependency directories. An ignore entry matches either a base name pattern
// or an absolute directory path.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root && w.skipDir(path, d.Name(), ignores) {
					return filepath.SkipDir
				}
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Walker) skipDir(path, name string, ignores []string) bool {
	if alwaysSkipped[name] {
		return true
	}
	for _, ignore := range ignores {
		if ignore == "" {
			continue
		}
		if filepath.IsAbs(ignore) {
			if filepath.Clean(ignore) == path {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(ignore, name); matched {
			return true
		}
	}
	return false
}

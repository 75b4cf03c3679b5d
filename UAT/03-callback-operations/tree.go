package tree

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// Walker walks directory trees, calling visit for each entry.
type Walker struct {
	Walk func(root string, visit func(path string, isDir bool) error) error
}

// NewWalker returns a walker backed by the real filesystem.
func NewWalker() *Walker {
	return &Walker{
		Walk: func(root string, visit func(path string, isDir bool) error) error {
			return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}

				return visit(path, d.IsDir())
			})
		},
	}
}

// CountFiles counts the regular files under root.
func CountFiles(walker *Walker, root string) (int, error) {
	count := 0

	err := walker.Walk(root, func(_ string, isDir bool) error {
		if !isDir {
			count++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking directory tree: %w", err)
	}

	return count, nil
}

// Package scan enumerates the files that make up a package.
package scan

import (
	"context"
	"io/fs"
	"os"
	"slices"
)

// Scan returns the slash-separated paths of every regular file below dir,
// relative to dir and sorted by byte order.
//
// Hidden files and directories are included. Symbolic links are neither
// followed nor returned, whether they point at files or directories. Other
// non-regular files (devices, sockets, pipes) are skipped.
//
// The walk is confined to dir through os.Root, so no path in the result can
// escape it.
func Scan(ctx context.Context, dir string) ([]string, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	var paths []string
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isRegular(d) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(paths)
	return paths, nil
}

// isRegular reports whether d names a regular file. os.ReadDir resolves
// unknown entry types with lstat, so the type bits can be trusted here.
func isRegular(d fs.DirEntry) bool {
	return d.Type().IsRegular()
}

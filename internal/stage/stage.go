// Package stage holds compressed payload bytes on disk until the table of
// contents is known, then commits the finished package atomically.
//
// Both the staging file and the output temp file live in the destination
// directory so the final rename never crosses filesystems. Nothing is ever
// visible at the destination path until the package is complete.
package stage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PackageMode is the permission applied to committed packages.
const PackageMode = 0o644

const (
	stagePattern  = ".iopkg-stage-*"
	outputPattern = ".iopkg-out-*"
)

// File is a payload staging file bound to a destination path.
//
// Callers must call Discard on every path; after a successful Commit it is
// a no-op.
type File struct {
	dest string
	file *os.File
	done bool
}

// New creates a staging file next to dest.
func New(dest string) (*File, error) {
	dir := filepath.Dir(dest)
	f, err := os.CreateTemp(dir, stagePattern)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return &File{dest: dest, file: f}, nil
}

// Name returns the path of the staging file.
func (s *File) Name() string {
	return s.file.Name()
}

// Write appends payload bytes to the staging file.
func (s *File) Write(p []byte) (int, error) {
	if s.done {
		return 0, os.ErrClosed
	}
	return s.file.Write(p)
}

// WriteFunc writes the finished package to w, reading the staged payload
// from payload.
type WriteFunc func(w io.Writer, payload io.Reader) error

// Commit rewinds the staged payload, lets write produce the package into a
// temp file, syncs it and renames it over the destination. The staging
// file is removed whether or not Commit succeeds.
func (s *File) Commit(write WriteFunc) (err error) {
	if s.done {
		return os.ErrClosed
	}
	defer func() {
		if discardErr := s.Discard(); discardErr != nil && err == nil {
			err = discardErr
		}
	}()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind staging file: %w", err)
	}

	out, err := os.CreateTemp(filepath.Dir(s.dest), outputPattern)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	outPath := out.Name()

	if err := write(out, s.file); err != nil {
		_ = out.Close()        //nolint:errcheck // cleaning up
		_ = os.Remove(outPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()        //nolint:errcheck // cleaning up
		_ = os.Remove(outPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("sync output file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(outPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Chmod(outPath, PackageMode); err != nil {
		_ = os.Remove(outPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod output file: %w", err)
	}
	if err := os.Rename(outPath, s.dest); err != nil {
		_ = os.Remove(outPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", s.dest, err)
	}
	return nil
}

// Discard closes and removes the staging file. It is safe to call more
// than once.
func (s *File) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	closeErr := s.file.Close()
	removeErr := os.Remove(s.file.Name())
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	if errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

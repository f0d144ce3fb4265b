// Package extract writes package entries to the filesystem.
package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meigma/iopkg"
)

// FileSink unpacks entries into a directory tree rooted at destDir.
//
// Each entry is staged as a hidden sibling of its destination and only
// appears under its real name once Commit succeeds.
type FileSink struct {
	destDir   string
	overwrite bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite makes the sink replace files that are already on disk.
// Without it those entries are left alone.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// NewFileSink returns a sink rooted at destDir. Missing directories are
// created on demand.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{destDir: destDir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldProcess reports whether path is to be unpacked: always with
// overwrite, otherwise only when nothing exists at the destination.
func (s *FileSink) ShouldProcess(path string) bool {
	if s.overwrite {
		return true
	}
	_, err := os.Lstat(s.destPath(path))
	return os.IsNotExist(err)
}

// Writer stages path next to its destination.
func (s *FileSink) Writer(path string) (iopkg.Committer, error) {
	dest := s.destPath(path)
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", parent, err)
	}
	f, err := os.CreateTemp(parent, ".iopkg-*")
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	return &stagedFile{dest: dest, f: f}, nil
}

func (s *FileSink) destPath(path string) string {
	return filepath.Join(s.destDir, filepath.FromSlash(path))
}

// stagedFile is one entry being unpacked.
type stagedFile struct {
	dest string
	f    *os.File
}

func (sf *stagedFile) Write(p []byte) (int, error) {
	return sf.f.Write(p)
}

// Commit publishes the staged content under its destination name. On
// failure the staged file is gone and the destination is untouched.
func (sf *stagedFile) Commit() error {
	if err := sf.publish(); err != nil {
		_ = os.Remove(sf.f.Name()) //nolint:errcheck // the publish error wins
		return err
	}
	return nil
}

func (sf *stagedFile) publish() error {
	staged := sf.f.Name()
	if err := sf.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", staged, err)
	}
	if err := os.Chmod(staged, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", staged, err)
	}
	if err := os.Rename(staged, sf.dest); err != nil {
		return fmt.Errorf("rename to %s: %w", sf.dest, err)
	}
	return nil
}

// Discard throws the staged content away.
func (sf *stagedFile) Discard() error {
	_ = sf.f.Close() //nolint:errcheck // removal below is what matters
	return os.Remove(sf.f.Name())
}

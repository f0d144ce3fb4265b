// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// ByteSource is an in-memory io.ReaderAt over a package image.
type ByteSource struct {
	data []byte
}

// NewByteSource returns a byte source backed by data.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *ByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.EOF
	}
	if off >= int64(len(m.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the length of the backing data.
func (m *ByteSource) Size() int64 {
	return int64(len(m.data))
}

// Bytes returns the backing slice for tests that corrupt it in place.
func (m *ByteSource) Bytes() []byte {
	return m.data
}

// WriteTree creates files below dir. Keys are slash-separated relative
// paths; parent directories are created as needed.
func WriteTree(tb testing.TB, dir string, files map[string][]byte) {
	tb.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
}

// Assemble lays out a raw package image from an already-encoded table of
// contents and payload region, without any validation. Tests use it to
// build malformed packages.
func Assemble(toc string, payload []byte) []byte {
	var buf bytes.Buffer
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(toc))) //nolint:gosec // test inputs are small
	buf.Write(header[:])
	buf.WriteString(toc)
	buf.Write(payload)
	return buf.Bytes()
}

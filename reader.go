package iopkg

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/iopkg/checksum"
	"github.com/meigma/iopkg/internal/lz4block"
	"github.com/meigma/iopkg/internal/sizing"
)

// Reader reads entries from a package.
//
// Every read seeks to 4+L+byte_offset, reads exactly size_compressed
// bytes, verifies the checksum and decompresses to exactly
// size_uncompressed bytes. Any mismatch is an error; data is never
// truncated or padded.
//
// A Reader is safe for concurrent use if its source is.
type Reader struct {
	src          io.ReaderAt
	closer       io.Closer
	toc          *TOC
	payloadStart int64
	payloadSize  uint64
	cfg          config
}

// Open opens the package file at path.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIO, "open", "", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(KindIO, "open", "", err)
	}
	r, err := NewReader(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the header and table of contents of a package held in
// src, which is size bytes long. Every entry must lie inside the payload
// region.
func NewReader(src io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	cfg := newConfig(opts)

	if size < HeaderSize {
		return nil, newError(KindFormat, "read header", "", fmt.Errorf("package is %d bytes", size))
	}
	var header [HeaderSize]byte
	if err := readAt(src, header[:], 0); err != nil {
		return nil, newError(KindIO, "read header", "", err)
	}
	tocLen := int64(binary.LittleEndian.Uint32(header[:]))
	if tocLen > size-HeaderSize {
		return nil, newError(KindFormat, "read header", "",
			fmt.Errorf("table of contents length %d exceeds package size %d", tocLen, size))
	}

	tocData := make([]byte, tocLen)
	if err := readAt(src, tocData, HeaderSize); err != nil {
		return nil, newError(KindIO, "read toc", "", err)
	}
	toc := NewTOC()
	if err := toc.UnmarshalJSON(tocData); err != nil {
		return nil, newError(KindFormat, "parse toc", "", err)
	}

	payloadStart := HeaderSize + tocLen
	payloadSize := uint64(size - payloadStart) //nolint:gosec // tocLen bounded above
	for path, e := range toc.All() {
		end, ok := e.End()
		if !ok || end > payloadSize {
			return nil, newError(KindFormat, "parse toc", path,
				fmt.Errorf("payload [%d, +%d) outside %d-byte payload region", e.ByteOffset, e.SizeCompressed, payloadSize))
		}
	}

	cfg.log().Debug("package opened", "files", toc.Len(), "toc_size", tocLen, "payload_size", payloadSize)
	return &Reader{
		src:          src,
		toc:          toc,
		payloadStart: payloadStart,
		payloadSize:  payloadSize,
		cfg:          cfg,
	}, nil
}

// Close closes the underlying file if the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// PayloadSize returns the length of the payload region in bytes.
func (r *Reader) PayloadSize() uint64 {
	return r.payloadSize
}

// TOC returns the package's table of contents.
func (r *Reader) TOC() *TOC {
	return r.toc
}

// ReadFile returns the uncompressed contents of the entry at path.
func (r *Reader) ReadFile(path string) ([]byte, error) {
	e, ok := r.toc.Lookup(path)
	if !ok {
		return nil, newError(KindNotFound, "read", path, nil)
	}
	return r.readEntry(path, e)
}

func (r *Reader) readEntry(path string, e Entry) ([]byte, error) {
	if e.SizeUncompressed > r.cfg.maxFileSize {
		return nil, newError(KindFormat, "read", path,
			fmt.Errorf("size_uncompressed %d exceeds limit %d", e.SizeUncompressed, r.cfg.maxFileSize))
	}
	compressed, err := r.readPayload(path, e)
	if err != nil {
		return nil, err
	}
	size, _ := sizing.ToInt(e.SizeUncompressed)
	data, err := lz4block.Decompress(compressed, size)
	if err != nil {
		return nil, newError(KindFormat, "decompress", path, err)
	}
	return data, nil
}

// readPayload reads and checksums an entry's compressed bytes.
func (r *Reader) readPayload(path string, e Entry) ([]byte, error) {
	n, ok := sizing.ToInt(e.SizeCompressed)
	if !ok {
		return nil, newError(KindFormat, "read", path, fmt.Errorf("size_compressed %d too large", e.SizeCompressed))
	}
	buf := make([]byte, n)
	off := r.payloadStart + int64(e.ByteOffset) //nolint:gosec // bounded by payloadSize in NewReader
	if err := readAt(r.src, buf, off); err != nil {
		return nil, newError(KindIO, "read", path, err)
	}
	if got := checksum.Sum(buf); got != e.Checksum {
		return nil, newError(KindChecksum, "verify", path,
			fmt.Errorf("checksum %d, expected %d", got, e.Checksum))
	}
	return buf, nil
}

// Verify checks the table of contents layout, then reads, checksums and
// decompresses every entry. It returns all failures joined together, with
// any layout failure first, or nil.
func (r *Reader) Verify(ctx context.Context) error {
	var errs []error
	if err := r.toc.Validate(); err != nil {
		errs = append(errs, newError(KindFormat, "verify layout", "", err))
	}
	for path, e := range r.toc.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.readEntry(path, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		r.cfg.log().Warn("package verification failed", "bad_entries", len(errs), "files", r.toc.Len())
	}
	return errors.Join(errs...)
}

// Committer receives one extracted file.
type Committer interface {
	io.Writer
	// Commit makes the written content visible.
	Commit() error
	// Discard drops the written content.
	Discard() error
}

// Sink receives extracted files.
type Sink interface {
	// ShouldProcess reports whether path should be extracted.
	ShouldProcess(path string) bool
	// Writer returns a Committer for path.
	Writer(path string) (Committer, error)
}

// Extract writes every entry accepted by sink, in table of contents order.
// It stops at the first failure.
func (r *Reader) Extract(ctx context.Context, sink Sink) error {
	for path, e := range r.toc.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !sink.ShouldProcess(path) {
			continue
		}
		data, err := r.readEntry(path, e)
		if err != nil {
			return err
		}
		w, err := sink.Writer(path)
		if err != nil {
			return newError(KindIO, "extract", path, err)
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Discard() //nolint:errcheck // best-effort cleanup
			return newError(KindIO, "extract", path, err)
		}
		if err := w.Commit(); err != nil {
			return newError(KindIO, "extract", path, err)
		}
		r.cfg.log().Debug("extracted file", "path", path, "size", len(data))
	}
	return nil
}

// readAt fills p from src at off.
func readAt(src io.ReaderAt, p []byte, off int64) error {
	n, err := src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Package lz4block wraps LZ4 block compression as used by IOPKG payloads.
//
// Payloads are raw LZ4 blocks with no frame and no size prefix. The
// uncompressed length travels in the table of contents and must be supplied
// to Decompress.
package lz4block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// MaxInputSize is the largest input a single LZ4 block can encode.
const MaxInputSize = 0x7E000000

// Level is the HC search depth used for every payload.
const Level = lz4.Level9

// emptyBlock is the encoding of a zero-length input: one token with no
// literals and no match.
var emptyBlock = []byte{0x00}

// ErrTooLarge is returned for inputs above MaxInputSize.
var ErrTooLarge = errors.New("lz4block: input exceeds block size limit")

// Compress encodes raw as a single LZ4 block at Level.
func Compress(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return bytes.Clone(emptyBlock), nil
	}
	if len(raw) > MaxInputSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))
	}

	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlockHC(raw, dst, Level, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// With a CompressBlockBound destination the encoder always emits a
	// block; zero means it gave up.
	if n == 0 {
		return nil, errors.New("lz4 compress: encoder produced no output")
	}
	return dst[:n], nil
}

// Decompress decodes a block produced by Compress. The result must be
// exactly size bytes long.
func Decompress(compressed []byte, size int) ([]byte, error) {
	if size < 0 || size > MaxInputSize {
		return nil, fmt.Errorf("lz4 decompress: invalid size %d", size)
	}
	if size == 0 {
		if !bytes.Equal(compressed, emptyBlock) {
			return nil, fmt.Errorf("lz4 decompress: %d bytes for an empty block", len(compressed))
		}
		return []byte{}, nil
	}

	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
	}
	return dst, nil
}

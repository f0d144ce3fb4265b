// Package checksum implements the 32-bit djb2 rolling hash used to protect
// IOPKG payloads.
//
// The hash is an integrity sentinel, not a cryptographic digest: collisions
// are tolerated and there is no seed beyond the fixed initial value.
package checksum

import (
	"hash"
	"strconv"
)

// Size is the size of a checksum in bytes.
const Size = 4

const offset32 = 5381

// Sum returns the djb2 checksum of b.
func Sum(b []byte) uint32 {
	h := uint32(offset32)
	for _, c := range b {
		h = (h << 5) + h + uint32(c)
	}
	return h
}

// Salted hashes the decimal form of sum followed by salt.
//
// It fingerprints build artifacts so that the same binary stamped with a
// different salt yields an unrelated value.
func Salted(sum uint32, salt string) uint32 {
	buf := strconv.AppendUint(make([]byte, 0, 10+len(salt)), uint64(sum), 10)
	buf = append(buf, salt...)
	return Sum(buf)
}

type digest uint32

// New returns a streaming djb2 hash. Writing the bytes of b in any number
// of chunks yields the same Sum32 as Sum(b).
func New() hash.Hash32 {
	d := digest(offset32)
	return &d
}

func (d *digest) Reset() { *d = offset32 }

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Write(p []byte) (int, error) {
	h := uint32(*d)
	for _, c := range p {
		h = (h << 5) + h + uint32(c)
	}
	*d = digest(h)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return uint32(*d) }

// Sum appends the big-endian checksum to in.
func (d *digest) Sum(in []byte) []byte {
	v := uint32(*d)
	return append(in, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

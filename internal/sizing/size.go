// Package sizing provides overflow-checked size arithmetic for package
// offsets and lengths.
package sizing

import (
	"io"
	"math"
)

// Add returns a+b, or false if the sum does not fit in a uint64.
func Add(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// ToInt converts size to int, or returns false if it does not fit.
func ToInt(size uint64) (int, bool) {
	if size > uint64(math.MaxInt) {
		return 0, false
	}
	return int(size), true
}

// ToInt64 converts size to int64, or returns false if it does not fit.
func ToInt64(size uint64) (int64, bool) {
	if size > uint64(math.MaxInt64) {
		return 0, false
	}
	return int64(size), true
}

// ReadAllWithLimit reads all of r, returning overflowErr if r holds more
// than maxSize bytes. At most maxSize+1 bytes are read.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt64-1) {
		return nil, overflowErr
	}
	data, err := io.ReadAll(&io.LimitedReader{R: r, N: int64(maxSize) + 1}) //nolint:gosec // checked above
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}

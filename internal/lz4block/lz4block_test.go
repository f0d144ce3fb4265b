package lz4block

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	random := make([]byte, 64*1024)
	_, err := rand.Read(random)
	require.NoError(t, err)

	pattern := make([]byte, 64*1024)
	for i := range pattern {
		pattern[i] = byte(i % 17)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"one byte", []byte{'x'}},
		{"short text", []byte("hello")},
		{"repeated text", bytes.Repeat([]byte("hello world "), 1000)},
		{"pattern", pattern},
		{"random", random},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			compressed, err := Compress(tt.data)
			require.NoError(t, err)
			require.NotEmpty(t, compressed)

			got, err := Decompress(compressed, len(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestCompressShrinksRedundantInput(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("A"), 4096)
	compressed, err := Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data)/10)
}

func TestCompressDeterministic(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("deterministic output "), 512)
	first, err := Compress(data)
	require.NoError(t, err)
	second, err := Compress(data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEmptyBlock(t *testing.T) {
	t.Parallel()

	compressed, err := Compress(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, compressed)

	got, err := Decompress(compressed, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Decompress([]byte{0x00, 0x00}, 0)
	assert.Error(t, err)
}

func TestDecompressSizeMismatch(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("size matters "), 200)
	compressed, err := Compress(data)
	require.NoError(t, err)

	_, err = Decompress(compressed, len(data)+1)
	assert.Error(t, err, "larger expected size must be rejected")

	_, err = Decompress(compressed, len(data)-1)
	assert.Error(t, err, "smaller expected size must be rejected")

	_, err = Decompress(compressed, -1)
	assert.Error(t, err)
}

func TestDecompressCorrupt(t *testing.T) {
	t.Parallel()

	_, err := Decompress([]byte{0xff, 0xff, 0xff}, 100)
	assert.Error(t, err)
}

package iopkg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioTOC(t *testing.T) *TOC {
	t.Helper()
	toc := NewTOC()
	require.NoError(t, toc.Add("a.txt", Entry{SizeUncompressed: 10, SizeCompressed: 11, ByteOffset: 0, Checksum: 71262383}))
	require.NoError(t, toc.Add("b/c.bin", Entry{SizeUncompressed: 0, SizeCompressed: 1, ByteOffset: 11, Checksum: 177573}))
	return toc
}

func TestWriteToLayout(t *testing.T) {
	t.Parallel()

	toc := scenarioTOC(t)
	payload := append([]byte{0xa0}, []byte("AAAAAAAAAA\x00")...)

	var buf bytes.Buffer
	n, err := WriteTo(&buf, toc, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	tocData, err := toc.MarshalJSON()
	require.NoError(t, err)

	out := buf.Bytes()
	tocLen := binary.LittleEndian.Uint32(out[:HeaderSize])
	assert.Equal(t, uint32(len(tocData)), tocLen)
	assert.Equal(t, tocData, out[HeaderSize:HeaderSize+tocLen])
	assert.Equal(t, payload, out[HeaderSize+tocLen:])
	assert.Equal(t, HeaderSize+len(tocData)+len(payload), buf.Len())
}

func TestWriteToShortPayload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := WriteTo(&buf, scenarioTOC(t), bytes.NewReader(make([]byte, 5)))
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "payload is 5 bytes")
}

func TestWriteToLongPayload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := WriteTo(&buf, scenarioTOC(t), bytes.NewReader(make([]byte, 13)))
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "longer")
}

func TestWriteToEmptyTOC(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := WriteTo(&buf, NewTOC(), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x02\x00\x00\x00{}"), buf.Bytes())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestWriteToDestinationFailure(t *testing.T) {
	t.Parallel()

	_, err := WriteTo(brokenWriter{}, scenarioTOC(t), bytes.NewReader(make([]byte, 12)))
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "no space left on device")
}

package iopkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/iopkg/checksum"
	"github.com/meigma/iopkg/internal/lz4block"
	"github.com/meigma/iopkg/internal/testutil"
)

// randomTree returns n files with mixed compressible and random content.
func randomTree(seed uint64, n int) map[string][]byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	files := make(map[string][]byte, n)
	for i := range n {
		var content []byte
		switch i % 4 {
		case 0:
			content = nil
		case 1:
			content = bytes.Repeat([]byte(fmt.Sprintf("line %d\n", i)), rng.IntN(500)+1)
		default:
			content = make([]byte, rng.IntN(8192))
			for j := range content {
				content[j] = byte(rng.Uint32())
			}
		}
		files[fmt.Sprintf("dir%d/sub%d/file%03d.bin", i%3, i%5, i)] = content
	}
	return files
}

func TestBuildScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"a.txt":   bytes.Repeat([]byte("A"), 10),
		"b/c.bin": {},
	})

	var payload bytes.Buffer
	toc, err := NewBuilder().Build(context.Background(), dir, &payload)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "b/c.bin"}, toc.Paths())

	a, _ := toc.Lookup("a.txt")
	c, _ := toc.Lookup("b/c.bin")

	assert.Equal(t, uint64(10), a.SizeUncompressed)
	assert.Equal(t, uint64(0), a.ByteOffset)
	// Ten bytes are too short for a match: one token plus ten literals.
	assert.Equal(t, uint64(11), a.SizeCompressed)
	assert.Equal(t, uint32(71262383), a.Checksum)

	assert.Equal(t, uint64(0), c.SizeUncompressed)
	assert.Equal(t, uint64(1), c.SizeCompressed)
	assert.Equal(t, a.SizeCompressed, c.ByteOffset)
	assert.Equal(t, checksum.Sum([]byte{0x00}), c.Checksum)

	want := append([]byte{0xa0}, bytes.Repeat([]byte("A"), 10)...)
	want = append(want, 0x00)
	assert.Equal(t, want, payload.Bytes())
}

func TestBuildEmptyInput(t *testing.T) {
	t.Parallel()

	var payload bytes.Buffer
	_, err := NewBuilder().Build(context.Background(), t.TempDir(), &payload)
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, KindEmptyInput, KindOf(err))
	assert.Zero(t, payload.Len())
}

func TestBuildMissingDirectory(t *testing.T) {
	t.Parallel()

	var payload bytes.Buffer
	_, err := NewBuilder().Build(context.Background(), filepath.Join(t.TempDir(), "missing"), &payload)
	require.ErrorIs(t, err, ErrScan)
}

func TestBuildOffsetsAreGapless(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := randomTree(1, 40)
	testutil.WriteTree(t, dir, files)

	var payload bytes.Buffer
	toc, err := NewBuilder().Build(context.Background(), dir, &payload)
	require.NoError(t, err)
	require.Equal(t, len(files), toc.Len())
	require.NoError(t, toc.Validate())

	var next uint64
	for path, e := range toc.All() {
		assert.Equal(t, next, e.ByteOffset, "offset of %s", path)
		assert.Equal(t, uint64(len(files[path])), e.SizeUncompressed, "size of %s", path)
		assert.GreaterOrEqual(t, e.SizeCompressed, uint64(1))

		block := payload.Bytes()[e.ByteOffset : e.ByteOffset+e.SizeCompressed]
		assert.Equal(t, e.Checksum, checksum.Sum(block), "checksum of %s", path)

		got, err := lz4block.Decompress(block, int(e.SizeUncompressed))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(files[path], got), "content of %s", path)

		next += e.SizeCompressed
	}
	assert.Equal(t, uint64(payload.Len()), next)
	total, ok := toc.PayloadSize()
	require.True(t, ok)
	assert.Equal(t, next, total)
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, randomTree(2, 25))

	build := func(opts ...Option) ([]byte, []byte) {
		var payload bytes.Buffer
		toc, err := NewBuilder(opts...).Build(context.Background(), dir, &payload)
		require.NoError(t, err)
		encoded, err := toc.MarshalJSON()
		require.NoError(t, err)
		return encoded, payload.Bytes()
	}

	toc1, payload1 := build()
	toc2, payload2 := build()
	assert.Equal(t, toc1, toc2)
	assert.Equal(t, payload1, payload2)

	for _, workers := range []int{2, 4, 16} {
		tocN, payloadN := build(WithWorkers(workers))
		assert.Equal(t, toc1, tocN, "toc with %d workers", workers)
		assert.Equal(t, payload1, payloadN, "payload with %d workers", workers)
	}
}

func TestBuildMaxFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"small.txt": []byte("tiny"),
		"large.txt": bytes.Repeat([]byte("x"), 100),
	})

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()

			var payload bytes.Buffer
			_, err := NewBuilder(WithMaxFileSize(50), WithWorkers(workers)).Build(context.Background(), dir, &payload)
			require.ErrorIs(t, err, ErrCompression)
			require.ErrorIs(t, err, lz4block.ErrTooLarge)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "large.txt", e.Path)
		})
	}
}

func TestBuildParallelFailureDoesNotHang(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := randomTree(3, 30)
	files["dir0/zz-huge.bin"] = bytes.Repeat([]byte("h"), 20000)
	testutil.WriteTree(t, dir, files)

	var payload bytes.Buffer
	_, err := NewBuilder(WithWorkers(3), WithMaxFileSize(10000)).Build(context.Background(), dir, &payload)
	require.ErrorIs(t, err, ErrCompression)
}

type failingWriter struct {
	budget int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(p) > w.budget {
		return 0, errors.New("disk full")
	}
	w.budget -= len(p)
	return len(p), nil
}

func TestBuildPayloadWriteFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, randomTree(4, 10))

	for _, workers := range []int{1, 4} {
		_, err := NewBuilder(WithWorkers(workers)).Build(context.Background(), dir, &failingWriter{budget: 100})
		require.ErrorIs(t, err, ErrIO, "workers=%d", workers)
	}
}

func TestBuildExclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"keep.txt":       []byte("keep"),
		"out/base.iopkg": []byte("previous package"),
	})

	b := &Builder{cfg: newConfig(nil), exclude: map[string]bool{"out/base.iopkg": true}}
	var payload bytes.Buffer
	toc, err := b.Build(context.Background(), dir, &payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, toc.Paths())
}

func TestBuildCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, randomTree(5, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		var payload bytes.Buffer
		_, err := NewBuilder(WithWorkers(workers)).Build(ctx, dir, &payload)
		require.ErrorIs(t, err, context.Canceled)
	}
}

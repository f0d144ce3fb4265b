package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/iopkg/internal/testutil"
)

func TestScanSortedSlashPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"b/c.bin":          nil,
		"a.txt":            []byte("AAAAAAAAAA"),
		"a/b":              []byte("nested"),
		"textures/x/y.png": []byte("png"),
		"noext":            []byte("no extension"),
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty", "dir"), 0o755))

	paths, err := Scan(context.Background(), dir)
	require.NoError(t, err)

	// Byte order puts "a.txt" before "a/b" because '.' < '/'.
	assert.Equal(t, []string{"a.txt", "a/b", "b/c.bin", "noext", "textures/x/y.png"}, paths)
}

func TestScanIncludesHiddenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		".hidden":         []byte("h"),
		".config/app.ini": []byte("[x]"),
		"visible.txt":     []byte("v"),
	})

	paths, err := Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".config/app.ini", ".hidden", "visible.txt"}, paths)
}

func TestScanSkipsSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outside := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{"real.txt": []byte("real")})
	testutil.WriteTree(t, outside, map[string][]byte{"secret/key.txt": []byte("secret")})

	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(dir, "linkdir")))

	paths, err := Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, paths)
}

func TestScanEmptyDirectory(t *testing.T) {
	t.Parallel()

	paths, err := Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestScanMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanRootIsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{"file": []byte("x")})

	_, err := Scan(context.Background(), filepath.Join(dir, "file"))
	assert.Error(t, err)
}

func TestScanCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{"a": []byte("a")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

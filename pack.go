package iopkg

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/iopkg/internal/stage"
)

// Result describes a package written by Pack.
type Result struct {
	// TOC is the table of contents written to the package.
	TOC *TOC

	// Size is the total package size in bytes.
	Size int64

	// Digest is the sha256 content digest of the whole package file.
	Digest digest.Digest
}

// Pack builds a package from dir and writes it to dest.
//
// Payload bytes are staged in a hidden temp file next to dest while the
// tree is compressed. The finished package is written to a second temp
// file, synced and renamed over dest, so dest either keeps its previous
// contents or holds a complete package. Temp files are removed on every
// path. If dest lies inside dir, neither dest nor the staging file is
// packaged.
func Pack(ctx context.Context, dir, dest string, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	log := cfg.log()

	st, err := stage.New(dest)
	if err != nil {
		return nil, newError(KindIO, "stage", "", err)
	}
	defer func() {
		if err := st.Discard(); err != nil {
			log.Warn("remove staging file", "path", st.Name(), "error", err)
		}
	}()

	b := &Builder{cfg: cfg, exclude: excludedPaths(dir, dest, st.Name())}
	toc, err := b.Build(ctx, dir, st)
	if err != nil {
		return nil, err
	}

	digester := digest.Canonical.Digester()
	var size int64
	err = st.Commit(func(w io.Writer, payload io.Reader) error {
		n, err := WriteTo(io.MultiWriter(w, digester.Hash()), toc, payload)
		size = n
		return err
	})
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = newError(KindIO, "commit", "", err)
		}
		return nil, err
	}

	res := &Result{TOC: toc, Size: size, Digest: digester.Digest()}
	log.Info("package written", "path", dest, "files", toc.Len(), "size", size, "digest", res.Digest)
	return res, nil
}

// excludedPaths returns the slash paths, relative to dir, of any of files
// that live inside dir.
func excludedPaths(dir string, files ...string) map[string]bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	out := make(map[string]bool, len(files))
	for _, f := range files {
		absFile, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, absFile)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out[filepath.ToSlash(rel)] = true
	}
	return out
}

package iopkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/iopkg/checksum"
	"github.com/meigma/iopkg/internal/lz4block"
	"github.com/meigma/iopkg/internal/scan"
	"github.com/meigma/iopkg/internal/sizing"
)

// Builder compresses a directory tree into a payload stream and the table
// of contents describing it.
type Builder struct {
	cfg config
	// exclude holds slash paths that are never packaged, such as the
	// package's own staging file when it sits inside the source tree.
	exclude map[string]bool
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{cfg: newConfig(opts)}
}

// compressed is one file after the compress-and-checksum stage.
type compressed struct {
	path     string
	size     uint64
	data     []byte
	checksum uint32
}

// Build packages every regular file below dir.
//
// Files are processed in sorted path order. Each file is read whole,
// compressed as one LZ4 block, checksummed over the compressed bytes and
// appended to payload; its entry records the running payload offset. Only
// one file is held in memory at a time unless WithWorkers enables parallel
// compression, in which case at most twice the worker count are.
//
// Build fails with ErrEmptyInput if dir contains no regular files. Any
// failure aborts the whole build; payload may then hold a partial stream
// and must be discarded.
func (b *Builder) Build(ctx context.Context, dir string, payload io.Writer) (*TOC, error) {
	paths, err := scan.Scan(ctx, dir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newError(KindScan, "scan", "", err)
	}
	paths = slices.DeleteFunc(paths, func(p string) bool { return b.exclude[p] })
	if len(paths) == 0 {
		return nil, newError(KindEmptyInput, "scan", "", fmt.Errorf("no regular files in %s", dir))
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, newError(KindScan, "scan", "", err)
	}
	defer root.Close()

	log := b.cfg.log()
	log.Info("building package", "dir", dir, "files", len(paths), "workers", b.cfg.workers)

	toc := NewTOC()
	var offset uint64
	merge := func(c compressed) error {
		if err := toc.Add(c.path, Entry{
			SizeUncompressed: c.size,
			SizeCompressed:   uint64(len(c.data)),
			ByteOffset:       offset,
			Checksum:         c.checksum,
		}); err != nil {
			return newError(KindSerialization, "index", c.path, err)
		}
		next, ok := sizing.Add(offset, uint64(len(c.data)))
		if !ok {
			return newError(KindIO, "stage", c.path, errors.New("payload size overflow"))
		}
		if _, err := payload.Write(c.data); err != nil {
			return newError(KindIO, "stage", c.path, err)
		}
		log.Debug("compressed file",
			"path", c.path,
			"size_uncompressed", c.size,
			"size_compressed", len(c.data),
			"byte_offset", offset,
		)
		offset = next
		return nil
	}

	if b.cfg.workers > 1 && len(paths) > 1 {
		err = b.buildParallel(ctx, root, paths, merge)
	} else {
		err = b.buildSequential(ctx, root, paths, merge)
	}
	if err != nil {
		return nil, err
	}

	log.Info("payload staged", "files", toc.Len(), "payload_size", offset)
	return toc, nil
}

func (b *Builder) buildSequential(ctx context.Context, root *os.Root, paths []string, merge func(compressed) error) error {
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := b.compressFile(root, path)
		if err != nil {
			return err
		}
		if err := merge(c); err != nil {
			return err
		}
	}
	return nil
}

// buildParallel compresses files on a worker pool and merges results in
// path order. The dispatcher takes a window slot per file in path order and
// the merge releases it, so the lowest unmerged file always holds a slot
// and the pipeline cannot stall.
//
//nolint:gocognit // producer, workers and merge need to share the pipeline state
func (b *Builder) buildParallel(ctx context.Context, root *os.Root, paths []string, merge func(compressed) error) error {
	workers := min(b.cfg.workers, len(paths))
	window := semaphore.NewWeighted(int64(workers) * 2)

	type task struct {
		index int
		path  string
	}
	type result struct {
		index int
		file  compressed
	}

	taskCh := make(chan task)
	readyCh := make(chan result, workers)
	eg, ctx := errgroup.WithContext(ctx)

	var workerWg sync.WaitGroup
	workerWg.Add(workers)
	for range workers {
		eg.Go(func() error {
			defer workerWg.Done()
			for t := range taskCh {
				c, err := b.compressFile(root, t.path)
				if err != nil {
					return err
				}
				select {
				case readyCh <- result{index: t.index, file: c}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer close(taskCh)
		for i, path := range paths {
			if err := window.Acquire(ctx, 1); err != nil {
				return err
			}
			select {
			case taskCh <- task{index: i, path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	go func() {
		workerWg.Wait()
		close(readyCh)
	}()

	eg.Go(func() error {
		next := 0
		pending := make(map[int]compressed, workers)
		for next < len(paths) {
			select {
			case res, ok := <-readyCh:
				if !ok {
					if err := ctx.Err(); err != nil {
						return err
					}
					return errors.New("iopkg: compression pipeline ended unexpectedly")
				}
				pending[res.index] = res.file
				for {
					c, ok := pending[next]
					if !ok {
						break
					}
					delete(pending, next)
					if err := merge(c); err != nil {
						return err
					}
					window.Release(1)
					next++
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return eg.Wait()
}

// compressFile reads, compresses and checksums one file.
func (b *Builder) compressFile(root *os.Root, path string) (compressed, error) {
	raw, err := readFile(root, path, b.cfg.maxFileSize)
	if err != nil {
		return compressed{}, err
	}
	data, err := lz4block.Compress(raw)
	if err != nil {
		return compressed{}, newError(KindCompression, "compress", path, err)
	}
	return compressed{
		path:     path,
		size:     uint64(len(raw)),
		data:     data,
		checksum: checksum.Sum(data),
	}, nil
}

// readFile reads a whole file from root, refusing files above limit.
func readFile(root *os.Root, path string, limit uint64) ([]byte, error) {
	f, err := root.Open(filepath.FromSlash(path))
	if err != nil {
		return nil, newError(KindScan, "read", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newError(KindScan, "read", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, newError(KindScan, "read", path, errors.New("not a regular file"))
	}
	if info.Size() < 0 || uint64(info.Size()) > limit {
		return nil, newError(KindCompression, "compress", path,
			fmt.Errorf("%w: %d bytes, limit %d", lz4block.ErrTooLarge, info.Size(), limit))
	}

	grew := fmt.Errorf("%w: file grew past limit %d while reading", lz4block.ErrTooLarge, limit)
	raw, err := sizing.ReadAllWithLimit(f, limit, grew)
	if errors.Is(err, lz4block.ErrTooLarge) {
		return nil, newError(KindCompression, "compress", path, err)
	}
	if err != nil {
		return nil, newError(KindScan, "read", path, err)
	}
	return raw, nil
}

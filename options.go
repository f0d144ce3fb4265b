package iopkg

import (
	"log/slog"

	"github.com/meigma/iopkg/internal/lz4block"
)

// DefaultMaxFileSize is the per-file ceiling used when no MaxFileSize option
// is set. It is the largest input a single LZ4 block can hold.
const DefaultMaxFileSize = lz4block.MaxInputSize

// config holds settings shared by Builder, Pack and Reader.
type config struct {
	logger      *slog.Logger
	workers     int
	maxFileSize uint64
}

func newConfig(opts []Option) config {
	cfg := config{workers: 1, maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Option configures packaging and reading.
type Option func(*config)

// WithLogger sets the logger for progress and diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithWorkers sets how many files are compressed concurrently while
// building. Values below 2 keep the default sequential pipeline. Output is
// byte-identical regardless of the worker count.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		if n < 1 {
			n = 1
		}
		cfg.workers = n
	}
}

// WithMaxFileSize limits the uncompressed size of a single file. Zero or
// values above DefaultMaxFileSize use DefaultMaxFileSize.
func WithMaxFileSize(n uint64) Option {
	return func(cfg *config) {
		if n == 0 || n > DefaultMaxFileSize {
			n = DefaultMaxFileSize
		}
		cfg.maxFileSize = n
	}
}

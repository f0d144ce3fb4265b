package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/meigma/iopkg"
)

// Configuration keys. Each is also a persistent flag and an IOPKG_*
// environment variable.
const (
	keyWorkers     = "workers"
	keyMaxFileSize = "max-file-size"
	keyLogLevel    = "log-level"
)

// settings is the resolved configuration for one invocation.
type settings struct {
	Workers     int
	MaxFileSize uint64
	LogLevel    string

	logger *slog.Logger
}

// options returns the library options for these settings.
func (s *settings) options() []iopkg.Option {
	return []iopkg.Option{
		iopkg.WithLogger(s.logger),
		iopkg.WithWorkers(s.Workers),
		iopkg.WithMaxFileSize(s.MaxFileSize),
	}
}

// loadSettings merges defaults, the optional config file, IOPKG_*
// environment variables and flags, in increasing precedence.
func loadSettings(flags *pflag.FlagSet, configFile string, logOut io.Writer) (*settings, error) {
	v := viper.New()
	v.SetDefault(keyWorkers, 1)
	v.SetDefault(keyMaxFileSize, uint64(iopkg.DefaultMaxFileSize))
	v.SetDefault(keyLogLevel, "info")

	v.SetEnvPrefix("IOPKG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	for _, key := range []string{keyWorkers, keyMaxFileSize, keyLogLevel} {
		if f := flags.Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	s := &settings{
		Workers:     v.GetInt(keyWorkers),
		MaxFileSize: v.GetUint64(keyMaxFileSize),
		LogLevel:    v.GetString(keyLogLevel),
	}
	if s.Workers < 1 {
		return nil, errors.New("workers must be at least 1")
	}

	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	s.logger = newLogger(logOut, level)
	return s, nil
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, level log.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: "iopkg",
	})
	return slog.New(handler)
}

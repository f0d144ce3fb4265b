// Package stamp writes salted plugin checksums into per-platform
// plugins.json manifests.
//
// For every platform directory under a build directory, each known plugin
// library that exists is hashed with checksum.Sum, the decimal sum is
// salted with checksum.Salted, and the result is recorded next to the
// plugin's name. Plugins whose library is absent are listed without a
// checksum.
package stamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/iopkg/checksum"
	"github.com/meigma/iopkg/internal/stage"
)

// ManifestName is the file written into each platform directory.
const ManifestName = "plugins.json"

// Plugin names a plugin and the base name of its shared library.
type Plugin struct {
	Name     string
	Filename string
}

// Platform is a platform directory and its shared library extension.
type Platform struct {
	Dir string
	Ext string
}

// DefaultPlugins are the plugins shipped with the engine.
var DefaultPlugins = []Plugin{
	{Name: "terrain", Filename: "IoliteTerrainPlugin"},
	{Name: "lua", Filename: "IoliteLuaPlugin"},
	{Name: "denoiser_oidn", Filename: "IoliteDenoiserOIDNPlugin"},
	{Name: "voxel_editing", Filename: "IoliteVoxelEditingPlugin"},
}

// DefaultPlatforms are the platforms plugins are built for.
var DefaultPlatforms = []Platform{
	{Dir: "windows", Ext: "dll"},
	{Dir: "linux", Ext: "so"},
}

// Entry is one plugin in a manifest. Checksum is nil when the plugin's
// library was not found.
type Entry struct {
	Name     string  `json:"name"`
	Filename string  `json:"filename"`
	Checksum *uint32 `json:"checksum,omitempty"`
}

// Manifest describes one written plugins.json.
type Manifest struct {
	Platform string
	Path     string
	Entries  []Entry
}

// Option configures a Stamper.
type Option func(*Stamper)

// WithLogger sets the logger for stamping progress.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stamper) {
		s.logger = logger
	}
}

// WithPlugins replaces the plugin list.
func WithPlugins(plugins ...Plugin) Option {
	return func(s *Stamper) {
		s.plugins = plugins
	}
}

// WithPlatforms replaces the platform list.
func WithPlatforms(platforms ...Platform) Option {
	return func(s *Stamper) {
		s.platforms = platforms
	}
}

// Stamper writes plugin manifests.
type Stamper struct {
	plugins   []Plugin
	platforms []Platform
	logger    *slog.Logger
}

// New returns a Stamper for the default plugins and platforms.
func New(opts ...Option) *Stamper {
	s := &Stamper{plugins: DefaultPlugins, platforms: DefaultPlatforms}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Stamp writes <dir>/<platform>/plugins.json for every platform whose
// directory exists and returns the manifests it wrote. Each manifest is
// replaced atomically.
func (s *Stamper) Stamp(ctx context.Context, dir, salt string) ([]Manifest, error) {
	var out []Manifest
	for _, plat := range s.platforms {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		platDir := filepath.Join(dir, plat.Dir)
		info, err := os.Stat(platDir)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("skipping missing platform", "platform", plat.Dir)
			continue
		}
		if err != nil {
			return out, fmt.Errorf("stat platform %s: %w", plat.Dir, err)
		}
		if !info.IsDir() {
			return out, fmt.Errorf("platform %s: %s is not a directory", plat.Dir, platDir)
		}

		m, err := s.stampPlatform(platDir, plat, salt)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Stamper) stampPlatform(platDir string, plat Platform, salt string) (Manifest, error) {
	// Fresh entries per platform, so a checksum never carries over.
	entries := make([]Entry, 0, len(s.plugins))
	for _, p := range s.plugins {
		e := Entry{Name: p.Name, Filename: p.Filename}
		lib := filepath.Join(platDir, p.Filename+"."+plat.Ext)
		sum, ok, err := librarySum(lib)
		if err != nil {
			return Manifest{}, fmt.Errorf("plugin %s (%s): %w", p.Name, plat.Dir, err)
		}
		if ok {
			stamped := checksum.Salted(sum, salt)
			e.Checksum = &stamped
			s.logger.Debug("stamped plugin", "platform", plat.Dir, "plugin", p.Name, "checksum", stamped)
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encode manifest for %s: %w", plat.Dir, err)
	}
	data = append(data, '\n')

	path := filepath.Join(platDir, ManifestName)
	if err := writeAtomic(path, data); err != nil {
		return Manifest{}, fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("wrote plugin manifest", "platform", plat.Dir, "path", path, "plugins", len(entries))
	return Manifest{Platform: plat.Dir, Path: path, Entries: entries}, nil
}

// librarySum returns the checksum of the regular file at path. ok is false
// when there is no regular file there.
func librarySum(path string) (sum uint32, ok bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !info.Mode().IsRegular() {
		return 0, false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()
	h := checksum.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, false, err
	}
	return h.Sum32(), true, nil
}

func writeAtomic(path string, data []byte) error {
	st, err := stage.New(path)
	if err != nil {
		return err
	}
	defer st.Discard() //nolint:errcheck // Commit already reports failures
	if _, err := st.Write(data); err != nil {
		return err
	}
	return st.Commit(func(w io.Writer, staged io.Reader) error {
		_, err := io.Copy(w, staged)
		return err
	})
}

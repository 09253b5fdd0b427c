package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrManifestInvalid marks a rill.toml that parsed but failed validation,
// as opposed to one the TOML decoder rejected outright.
var ErrManifestInvalid = errors.New("manifest validation failed")

// Manifest is a loaded rill.toml plus where it was found.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config is the rill.toml contents.
type Config struct {
	Package PackageConfig `toml:"package"`
	Memory  MemoryConfig  `toml:"memory"`
}

type PackageConfig struct {
	Name string `toml:"name"`
}

// MemoryConfig tunes the memory analyzer. Every knob has a working
// default; the [memory] section may be omitted entirely.
type MemoryConfig struct {
	// MaxDiagnostics caps the per-function diagnostic batch.
	MaxDiagnostics int `toml:"max-diagnostics"`
	// Jobs bounds analyzer parallelism; 0 means one worker per CPU.
	Jobs int `toml:"jobs"`
	// Cache enables the on-disk analysis cache.
	Cache bool `toml:"cache"`
	// CacheDir overrides the cache location, relative to the project root.
	CacheDir string `toml:"cache-dir"`
	// WarningsAsErrors promotes analyzer warnings to build failures.
	WarningsAsErrors bool `toml:"warnings-as-errors"`
}

// DefaultMemoryConfig returns the analyzer defaults used when rill.toml
// has no [memory] section.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxDiagnostics: 100,
		Jobs:           0,
		Cache:          true,
		CacheDir:       ".rill-cache",
	}
}

// LoadManifest walks up from startDir, parses the nearest rill.toml, and
// fills defaults for anything the file leaves out.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindRillToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// LoadConfig parses one rill.toml file.
func LoadConfig(path string) (Config, error) {
	cfg := Config{Memory: DefaultMemoryConfig()}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return Config{}, fmt.Errorf("%s: missing [package]: %w", path, ErrManifestInvalid)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return Config{}, fmt.Errorf("%s: missing [package].name: %w", path, ErrManifestInvalid)
	}
	if err := validateMemory(path, meta, cfg.Memory); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateMemory(path string, meta toml.MetaData, mem MemoryConfig) error {
	if !meta.IsDefined("memory") {
		return nil
	}
	if mem.MaxDiagnostics < 1 {
		return fmt.Errorf("%s: [memory].max-diagnostics must be at least 1: %w", path, ErrManifestInvalid)
	}
	if mem.Jobs < 0 {
		return fmt.Errorf("%s: [memory].jobs must not be negative: %w", path, ErrManifestInvalid)
	}
	if strings.TrimSpace(mem.CacheDir) == "" {
		return fmt.Errorf("%s: [memory].cache-dir must not be empty: %w", path, ErrManifestInvalid)
	}
	return nil
}

// CachePath resolves the cache directory against the project root.
func (m *Manifest) CachePath() string {
	dir := m.Config.Memory.CacheDir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(m.Root, dir)
}

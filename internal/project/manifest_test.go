package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rill.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadConfigFillsMemoryDefaults(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
name = "demo"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultMemoryConfig()
	if cfg.Memory != want {
		t.Fatalf("memory config = %+v, want defaults %+v", cfg.Memory, want)
	}
}

func TestLoadConfigOverridesMemorySection(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
name = "demo"

[memory]
max-diagnostics = 25
jobs = 4
cache = false
cache-dir = "build/cache"
warnings-as-errors = true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	mem := cfg.Memory
	if mem.MaxDiagnostics != 25 || mem.Jobs != 4 || mem.Cache || !mem.WarningsAsErrors {
		t.Fatalf("unexpected memory config %+v", mem)
	}
	if mem.CacheDir != "build/cache" {
		t.Fatalf("cache-dir = %q", mem.CacheDir)
	}
}

func TestLoadConfigRejectsBadMemoryValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero max-diagnostics", "[package]\nname = \"demo\"\n[memory]\nmax-diagnostics = 0\n"},
		{"negative jobs", "[package]\nname = \"demo\"\n[memory]\njobs = -1\n"},
		{"empty cache-dir", "[package]\nname = \"demo\"\n[memory]\ncache-dir = \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tc.body)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrManifestInvalid) {
				t.Fatalf("error %v should wrap ErrManifestInvalid", err)
			}
		})
	}
}

func TestLoadConfigRequiresPackageName(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[package]\n")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected missing name error")
	}
	if !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("error %v should wrap ErrManifestInvalid", err)
	}
}

func TestLoadConfigDistinguishesParseErrors(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[package\nname =")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("decoder failure %v must not read as a validation error", err)
	}
}

func TestLoadManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"demo\"\n")
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, ok, err := LoadManifest(nested)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if !ok {
		t.Fatal("manifest not found")
	}
	if m.Config.Package.Name != "demo" {
		t.Fatalf("package name = %q", m.Config.Package.Name)
	}
	if got := m.CachePath(); got != filepath.Join(m.Root, ".rill-cache") {
		t.Fatalf("cache path = %q", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultInCurrentDirectory(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Histogram != 8 {
		t.Fatalf("Histogram = %d, want default 8", cfg.Histogram)
	}
	if _, err := os.Stat(".flux2imd.toml"); err != nil {
		t.Fatalf("expected .flux2imd.toml to be created: %v", err)
	}
}

func TestLoadParsesFormatOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	contents := `debug_mask = 5
histogram_levels = 4
output_dir = "out"

[[format_override]]
cylinder = 0
head = 1
format = "MFM5-16x256"
`
	if err := os.WriteFile(filepath.Join(dir, ".flux2imd.toml"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DebugMask != 5 {
		t.Fatalf("DebugMask = %d, want 5", cfg.DebugMask)
	}
	if cfg.Histogram != 4 {
		t.Fatalf("Histogram = %d, want 4", cfg.Histogram)
	}
	if cfg.OutputDir != "out" {
		t.Fatalf("OutputDir = %q, want \"out\"", cfg.OutputDir)
	}
	name, ok := cfg.Lookup(0, 1)
	if !ok || name != "MFM5-16x256" {
		t.Fatalf("Lookup(0, 1) = (%q, %v), want (\"MFM5-16x256\", true)", name, ok)
	}
	if _, ok := cfg.Lookup(1, 0); ok {
		t.Fatal("Lookup(1, 0) should not match the (0, 1) override")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConf(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfigName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "jump_set_widening = true\ndot = true\n")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.JumpSetWidening || !cfg.Dot {
		t.Errorf("got %+v", cfg)
	}
	if cfg.DotDir != "." {
		t.Errorf("unset key overridden: dot_dir = %q", cfg.DotDir)
	}
}

func TestLoadNearestWins(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "pkg")
	if err := os.Mkdir(inner, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConf(t, outer, "jump_set_widening = true\ndot_dir = \"graphs\"\n")
	writeConf(t, inner, "jump_set_widening = false\n")

	cfg, err := Load(inner)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JumpSetWidening {
		t.Error("inner file did not override outer")
	}
	if cfg.DotDir != "graphs" {
		t.Errorf("outer setting lost: dot_dir = %q", cfg.DotDir)
	}
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "jump_set_widening = maybe\n")
	if _, err := Load(dir); err == nil {
		t.Error("no error for invalid TOML")
	}
}

package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QDECOMP_CONFIG_HOME", t.TempDir())
	cfg, err := LoadConfig(Options{})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Path == "" {
		t.Fatalf("default database path is empty")
	}
}

func TestLoadConfigFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	data := "[database]\npath = \"from-file.db\"\n\n[view]\ntab-width = 8\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Path != "from-file.db" || cfg.View.TabWidth != 8 {
		t.Fatalf("config = %+v", cfg)
	}

	cfg, err = LoadConfig(Options{ConfigPath: path, DBPath: "flag.db"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Path != "flag.db" {
		t.Fatalf("database path = %q, want flag.db", cfg.Database.Path)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[view\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(Options{ConfigPath: path}); err == nil {
		t.Fatalf("malformed config accepted")
	}
}

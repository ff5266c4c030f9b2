package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SrcDir != "src" || cfg.OutDir != "build" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polybuild.yaml")
	data := "src: web\nout: dist\ncompress: true\ncompress_level: 9\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SrcDir != "web" || cfg.OutDir != "dist" {
		t.Errorf("yaml not applied: %+v", cfg)
	}
	if !cfg.Compress || cfg.CompressLevel != 9 {
		t.Errorf("compress settings not applied: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polybuild.yaml")
	if err := os.WriteFile(path, []byte("src: web\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POLYBUILD_SRC", "elsewhere")
	t.Setenv("POLYBUILD_COMPRESS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SrcDir != "elsewhere" {
		t.Errorf("env should win over file, got %q", cfg.SrcDir)
	}
	if !cfg.Compress {
		t.Error("env bool override not applied")
	}
}

func TestValidateRejectsSameSrcAndOut(t *testing.T) {
	cfg := Config{SrcDir: "x", OutDir: "x"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when src == out")
	}
}

// Package config loads build settings from an optional YAML project
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything the build and the dev server need.
type Config struct {
	// Source tree to build and output directory for results.
	SrcDir string `yaml:"src"`
	OutDir string `yaml:"out"`

	// Precompress text outputs as .gz siblings.
	Compress      bool `yaml:"compress"`
	CompressLevel int  `yaml:"compress_level"`

	// Dev server.
	Port string `yaml:"port"`

	LogLevel string `yaml:"log_level"`
}

// Load reads the YAML file at path (skipped when path is empty), then
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		SrcDir:        "src",
		OutDir:        "build",
		CompressLevel: 6,
		Port:          "8081",
		LogLevel:      "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.SrcDir = envOr("POLYBUILD_SRC", cfg.SrcDir)
	cfg.OutDir = envOr("POLYBUILD_OUT", cfg.OutDir)
	cfg.Compress = envBool("POLYBUILD_COMPRESS", cfg.Compress)
	cfg.CompressLevel = envInt("POLYBUILD_COMPRESS_LEVEL", cfg.CompressLevel)
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.LogLevel = envOr("POLYBUILD_LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// Validate checks the loaded configuration.
func (c Config) Validate() error {
	if c.SrcDir == "" {
		return fmt.Errorf("src directory is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("out directory is required")
	}
	if c.SrcDir == c.OutDir {
		return fmt.Errorf("src and out must differ")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

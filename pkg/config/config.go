// Package config loads webpilot settings from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable settings. Zero values are filled with defaults
// by Load.
type Config struct {
	// Model settings.
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Agent settings.
	MaxIterations      int    `yaml:"max_iterations"`
	CustomInstructions string `yaml:"custom_instructions"`
	Debug              bool   `yaml:"debug"`

	// Browser settings.
	Headless      bool          `yaml:"headless"`
	ActionTimeout time.Duration `yaml:"action_timeout"`

	// Session recording.
	RunsDir string `yaml:"runs_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPTimeout:   120 * time.Second,
		MaxIterations: 1000,
		Headless:      true,
		ActionTimeout: 180 * time.Second,
		RunsDir:       "runs",
	}
}

// DefaultPath returns ~/.webpilot/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".webpilot", "config.yaml"), nil
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides. An empty path
// means the default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 1000
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 180 * time.Second
	}
	if cfg.RunsDir == "" {
		cfg.RunsDir = "runs"
	}

	return cfg, nil
}

// applyEnv overlays OPENROUTER_* and WEBPILOT_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("OPENROUTER_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("WEBPILOT_RUNS_DIR"); v != "" {
		c.RunsDir = v
	}
	if v := os.Getenv("WEBPILOT_HEADLESS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Headless = parsed
		}
	}
	if v := os.Getenv("WEBPILOT_DEBUG"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Debug = parsed
		}
	}
}

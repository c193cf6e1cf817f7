// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete loom configuration.
type Config struct {
	// General settings
	Version string `toml:"version"`

	// DataDir holds the chat database and vault key file.
	// Default: ~/.loom
	DataDir string `toml:"data_dir"`

	// DefaultProvider and DefaultModel seed new conversations.
	DefaultProvider string `toml:"default_provider"`
	DefaultModel    string `toml:"default_model"`

	// Providers configures each provider's endpoint and model list,
	// keyed by registry name ("ollama", "openai").
	Providers map[string]ProviderConfig `toml:"providers"`

	// Export configuration
	Export ExportConfig `toml:"export"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Log configuration
	Log LogConfig `toml:"log"`
}

// ProviderConfig contains one provider's connection settings. Secrets are
// deliberately absent: keys are vault-encrypted rows in the store.
type ProviderConfig struct {
	// BaseURL is the provider's API endpoint. Empty means the provider's
	// built-in default.
	BaseURL string `toml:"base_url"`
	// Models lists the model IDs offered in the model picker.
	Models []string `toml:"models"`
}

// ExportConfig contains transcript export configuration.
type ExportConfig struct {
	// OutputDir is where exported transcripts are written.
	OutputDir string `toml:"output_dir"`
	// IncludeMetadata includes the metadata header in exports.
	IncludeMetadata bool `toml:"include_metadata"`
	// IncludeTimestamps includes per-message timestamps in exports.
	IncludeTimestamps bool `toml:"include_timestamps"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark" or "light"
	Theme string `toml:"theme"`
	// ShowTokens displays token counts in the UI
	ShowTokens bool `toml:"show_tokens"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `toml:"level"`
	// File is the log file path; empty logs to stderr.
	File string `toml:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:         "1.0.0",
		DefaultProvider: "ollama",
		DefaultModel:    "llama3.2",

		Providers: map[string]ProviderConfig{
			"ollama": {
				BaseURL: "http://127.0.0.1:11434",
				Models:  []string{"llama3.2", "qwen2.5-coder:14b"},
			},
			"openai": {
				Models: []string{"gpt-4o", "gpt-4o-mini"},
			},
		},

		Export: ExportConfig{
			OutputDir:         ".",
			IncludeMetadata:   true,
			IncludeTimestamps: true,
		},

		UI: UIConfig{
			Theme:      "dark",
			ShowTokens: true,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the loom configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".loom"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// built-in defaults when none exists. Environment overrides apply last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := loadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadTOML decodes a TOML file over the config.
// SECURITY: Checks and fixes file permissions on load.
func loadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems; load anyway.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() error {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DataDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.DataDir = dir
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = defaults.DefaultProvider
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}

	if c.Providers == nil {
		c.Providers = defaults.Providers
	}
	// A configured provider with no base URL inherits the default one.
	for name, def := range defaults.Providers {
		pc, ok := c.Providers[name]
		if !ok {
			c.Providers[name] = def
			continue
		}
		if pc.BaseURL == "" {
			pc.BaseURL = def.BaseURL
		}
		if len(pc.Models) == 0 {
			pc.Models = def.Models
		}
		c.Providers[name] = pc
	}

	if c.Export.OutputDir == "" {
		c.Export.OutputDir = defaults.Export.OutputDir
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies LOOM_* environment variables over the loaded
// configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LOOM_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LOOM_DEFAULT_PROVIDER"); v != "" {
		c.DefaultProvider = v
	}
	if v := os.Getenv("LOOM_DEFAULT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("LOOM_OLLAMA_URL"); v != "" {
		pc := c.Providers["ollama"]
		pc.BaseURL = v
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderConfig)
		}
		c.Providers["ollama"] = pc
	}
	if v := os.Getenv("LOOM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.UI.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("invalid ui.theme %q (must be \"dark\" or \"light\")", c.UI.Theme)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	for name, pc := range c.Providers {
		if pc.BaseURL == "" {
			continue
		}
		u, err := url.Parse(pc.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid base_url %q for provider %s", pc.BaseURL, name)
		}
	}
	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the default config file path with 0600
// permissions.
func (c *Config) Save() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

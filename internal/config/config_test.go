// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.fillDefaults())
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "ollama", cfg.DefaultProvider)
	assert.NotEmpty(t, cfg.Providers["ollama"].BaseURL)
}

func TestLoadFromPathMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_provider = "openai"
default_model = "gpt-4o"

[providers.ollama]
base_url = "http://10.0.0.5:11434"

[log]
level = "debug"
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Providers["ollama"].BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.NotEmpty(t, cfg.Providers["ollama"].Models)
	assert.Contains(t, cfg.Providers, "openai")
}

func TestLoadFromPathRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		toml string
	}{
		{"bad theme", "[ui]\ntheme = \"solarized\"\n"},
		{"bad log level", "[log]\nlevel = \"verbose\"\n"},
		{"bad base url", "[providers.ollama]\nbase_url = \"not a url\"\n"},
		{"bad url scheme", "[providers.ollama]\nbase_url = \"ftp://host\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.toml), 0600))
			_, err := LoadFromPath(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOOM_DATA_DIR", "/tmp/loom-test")
	t.Setenv("LOOM_DEFAULT_PROVIDER", "openai")
	t.Setenv("LOOM_OLLAMA_URL", "http://envhost:11434")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "/tmp/loom-test", cfg.DataDir)
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, "http://envhost:11434", cfg.Providers["ollama"].BaseURL)
}

func TestSaveToRoundTripsWithSecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.DefaultModel = "qwen2.5-coder:14b"
	require.NoError(t, cfg.SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:14b", loaded.DefaultModel)
}

func TestLoadFixesLoosePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("default_model = \"m\"\n"), 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

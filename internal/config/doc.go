// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for loom.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. API keys are never part of the config file;
// they live encrypted in the chat database.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ProviderConfig: Per-provider endpoint and model list
//   - ExportConfig: Transcript export behavior
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LOOM_*)
//   - ~/.loom/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	provider := cfg.DefaultProvider
//	ollamaURL := cfg.Providers["ollama"].BaseURL
package config

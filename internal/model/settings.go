// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CHAT SETTINGS
// =============================================================================

// ChatSettings holds provider-scoped defaults, one row per provider ID.
//
// APIKey is ciphertext at rest (vault.Prefix marks it); it is decrypted
// transiently when a send constructs a provider client and never cached in
// long-lived state.
type ChatSettings struct {
	Provider     string  `json:"provider"`
	APIKey       string  `json:"api_key,omitempty"` // encrypted, never plaintext
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

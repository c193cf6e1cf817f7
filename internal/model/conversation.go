// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the metadata for one chat conversation. Messages are
// stored separately and keyed by ConversationID.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Primary provider/model pair
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Dual mode: an optional secondary provider for parallel A/B responses.
	IsDualMode     bool   `json:"is_dual_mode,omitempty"`
	SecondProvider string `json:"second_provider,omitempty"`
	SecondModel    string `json:"second_model,omitempty"`
}

// HasSecondProvider reports whether the conversation is configured for
// dual-mode sends.
func (c *Conversation) HasSecondProvider() bool {
	return c.IsDualMode && c.SecondProvider != "" && c.SecondModel != ""
}

// =============================================================================
// CONVERSATION METADATA
// =============================================================================

// ConversationMeta contains the fields needed to list conversations without
// loading their messages.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message, truncated
}

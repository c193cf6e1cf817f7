// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider abstracts remote chat-completion endpoints.
//
// The orchestrator depends only on the consumption contract defined here:
// ordered messages in, a lazy sequence of text fragments out, cancelable
// via context. The wire format of each vendor's HTTP API lives entirely
// inside its implementation file.
package provider

import (
	"context"

	"github.com/jeranaias/loom-tui/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one message in the context sent to a provider.
type ChatMessage struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

// Params are the per-request generation parameters.
type Params struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Chunk is one fragment of a streaming response.
type Chunk struct {
	// Content is the text fragment. May be empty on the final chunk.
	Content string

	// Done marks the natural end of the stream.
	Done bool

	// Tokens is the completion token count, reported on the final chunk
	// when the provider supplies usage data. Zero otherwise.
	Tokens int

	// Err carries a stream failure. After an error chunk the channel is
	// closed; cancellation via context never produces an error chunk.
	Err error
}

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Provider is a chat-completion backend.
type Provider interface {
	// Name returns the provider's registry ID.
	Name() string

	// Models returns the provider's advertised model IDs.
	Models() []string

	// StreamChat starts a streaming completion and returns a channel of
	// fragments. The channel is closed when the stream ends naturally,
	// fails, or the context is cancelled; after cancellation the channel
	// closes within one in-flight network chunk and nothing panics.
	StreamChat(ctx context.Context, messages []ChatMessage, params Params) (<-chan Chunk, error)

	// TestCredential performs a minimal request and reports whether the
	// configured credential works. Expected auth failures are reported as
	// ok=false with a nil error; err is reserved for transport problems.
	TestCredential(ctx context.Context) (ok bool, err error)
}

// =============================================================================
// CONFIG
// =============================================================================

// Config carries what a provider needs at construction time. APIKey is
// plaintext, decrypted transiently by the caller for this construction
// only.
type Config struct {
	APIKey  string
	BaseURL string
	Models  []string
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/loom-tui/internal/model"
)

// =============================================================================
// OPENAI PROVIDER
// =============================================================================

// defaultOpenAIModels are offered when the config does not advertise its
// own list (e.g. an OpenAI-compatible proxy).
var defaultOpenAIModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}

// OpenAI talks to the OpenAI chat-completion API, or any compatible
// endpoint via Config.BaseURL.
type OpenAI struct {
	client *openai.Client
	models []string
}

// NewOpenAI constructs the provider. An empty API key fails with
// ErrMissingCredential before any network attempt.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	models := cfg.Models
	if len(models) == 0 {
		models = defaultOpenAIModels
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		models: models,
	}, nil
}

// Name returns the provider's registry ID.
func (p *OpenAI) Name() string {
	return "openai"
}

// Models returns the advertised model IDs.
func (p *OpenAI) Models() []string {
	return p.models
}

// StreamChat starts a streaming completion.
func (p *OpenAI) StreamChat(ctx context.Context, messages []ChatMessage, params Params) (<-chan Chunk, error) {
	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    convertMessages(messages, params.SystemPrompt),
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxTokens,
		Stream:      true,
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(ctx, out, Chunk{Err: &RequestError{Provider: p.Name(), Err: err}})
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				emit(ctx, out, Chunk{Done: true})
				return
			}
			if err != nil {
				// Cancellation is not a stream failure.
				if ctx.Err() != nil {
					return
				}
				emit(ctx, out, Chunk{Err: &RequestError{Provider: p.Name(), Err: err}})
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if content := response.Choices[0].Delta.Content; content != "" {
				if !emit(ctx, out, Chunk{Content: content}) {
					return
				}
			}
			if response.Choices[0].FinishReason != "" {
				emit(ctx, out, Chunk{Done: true})
				return
			}
		}
	}()

	return out, nil
}

// TestCredential lists models as a minimal authenticated request. Auth
// failures report ok=false without an error.
func (p *OpenAI) TestCredential(ctx context.Context) (bool, error) {
	_, err := p.client.ListModels(ctx)
	if err == nil {
		return true, nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized ||
			apiErr.HTTPStatusCode == http.StatusForbidden {
			return false, nil
		}
	}
	return false, &RequestError{Provider: p.Name(), Err: err}
}

// =============================================================================
// HELPERS
// =============================================================================

// convertMessages maps the context to the OpenAI wire format, prepending
// the system prompt when one is configured and none is present.
func convertMessages(messages []ChatMessage, systemPrompt string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if systemPrompt != "" && (len(messages) == 0 || messages[0].Role != model.RoleSystem) {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// emit sends a chunk unless the context is already cancelled. Reports
// whether the consumer is still listening.
func emit(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
)

// =============================================================================
// OLLAMA PROVIDER
// =============================================================================

// DefaultOllamaURL is the default local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// defaultOllamaModels are offered when the config does not advertise a
// list; the live set comes from the local daemon.
var defaultOllamaModels = []string{"llama3.2", "qwen2.5-coder", "mistral"}

// Ollama talks to a local Ollama daemon over its NDJSON chat API. No
// credential is required.
type Ollama struct {
	baseURL string
	client  *http.Client
	models  []string
}

// NewOllama constructs the provider.
func NewOllama(cfg Config) (*Ollama, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	models := cfg.Models
	if len(models) == 0 {
		models = defaultOllamaModels
	}

	return &Ollama{
		baseURL: baseURL,
		// No overall timeout: streams are unbounded, cancellation comes
		// from the request context.
		client: &http.Client{},
		models: models,
	}, nil
}

// Name returns the provider's registry ID.
func (p *Ollama) Name() string {
	return "ollama"
}

// Models returns the advertised model IDs.
func (p *Ollama) Models() []string {
	return p.models
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaChatChunk is one NDJSON line of the streaming response.
type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done      bool `json:"done"`
	EvalCount int  `json:"eval_count,omitempty"`
}

// =============================================================================
// STREAMING
// =============================================================================

// StreamChat starts a streaming completion against /api/chat.
func (p *Ollama) StreamChat(ctx context.Context, messages []ChatMessage, params Params) (<-chan Chunk, error) {
	wire := make([]ollamaMessage, 0, len(messages)+1)
	if params.SystemPrompt != "" && (len(messages) == 0 || messages[0].Role != model.RoleSystem) {
		wire = append(wire, ollamaMessage{Role: "system", Content: params.SystemPrompt})
	}
	for _, msg := range messages {
		wire = append(wire, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
	}

	reqBody := ollamaChatRequest{
		Model:    params.Model,
		Messages: wire,
		Stream:   true,
	}
	if params.Temperature != 0 || params.MaxTokens != 0 {
		reqBody.Options = &ollamaOptions{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &RequestError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer drainAndClose(resp.Body)
		return nil, &RequestError{
			Provider: p.Name(),
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer drainAndClose(resp.Body)

		reader := bufio.NewReader(resp.Body)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				var chunk ollamaChatChunk
				// Skip malformed lines rather than aborting the stream.
				if jsonErr := json.Unmarshal(line, &chunk); jsonErr == nil {
					if chunk.Message.Content != "" {
						if !emit(ctx, out, Chunk{Content: chunk.Message.Content}) {
							return
						}
					}
					if chunk.Done {
						emit(ctx, out, Chunk{Done: true, Tokens: chunk.EvalCount})
						return
					}
				}
			}
			if err != nil {
				if err == io.EOF || ctx.Err() != nil {
					return
				}
				emit(ctx, out, Chunk{Err: &RequestError{Provider: p.Name(), Err: err}})
				return
			}
		}
	}()

	return out, nil
}

// TestCredential checks daemon reachability; Ollama itself needs no key.
func (p *Ollama) TestCredential(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/version", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, &RequestError{Provider: p.Name(), Err: err}
	}
	defer drainAndClose(resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// drainAndClose drains a response body so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 1<<16))
	r.Close()
}

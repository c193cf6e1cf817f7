// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/thread"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter renders transcripts to JSON.
// NOTE: JSON exports always include the complete tree regardless of options,
// so the output is a faithful representation of the stored conversation.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// jsonDocument is the exported JSON shape: conversation metadata plus the
// reconstructed tree.
type jsonDocument struct {
	Conversation model.Conversation `json:"conversation"`
	MainThread   []model.Message    `json:"main_thread"`
	Branches     []jsonBranch       `json:"branches,omitempty"`
	ExportedAt   time.Time          `json:"exported_at"`
}

type jsonBranch struct {
	ID              string          `json:"id"`
	ParentMessageID string          `json:"parent_message_id"`
	Provider        string          `json:"provider,omitempty"`
	Model           string          `json:"model,omitempty"`
	Messages        []model.Message `json:"messages"`
}

// Export converts a transcript to indented JSON.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}

	doc := jsonDocument{
		Conversation: t.Conversation,
		MainThread:   t.Tree.MainThread,
		ExportedAt:   time.Now().UTC(),
	}
	for _, b := range t.Tree.Branches {
		doc.Branches = append(doc.Branches, branchToJSON(b))
	}
	return json.MarshalIndent(doc, "", "  ")
}

func branchToJSON(b thread.Branch) jsonBranch {
	return jsonBranch{
		ID:              b.ID,
		ParentMessageID: b.ParentMessageID(),
		Provider:        b.Provider,
		Model:           b.Model,
		Messages:        b.Messages,
	}
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

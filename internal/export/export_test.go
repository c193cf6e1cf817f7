// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/loom-tui/internal/model"
)

// sampleTranscript builds a conversation with a two-message main thread and
// one branch forked off the assistant reply.
func sampleTranscript() *Transcript {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	conv := model.Conversation{
		ID:        "conv_1",
		Title:     "Caching strategies",
		Provider:  "ollama",
		Model:     "llama3.2",
		CreatedAt: base,
		UpdatedAt: base.Add(time.Minute),
	}
	msgs := []model.Message{
		{ID: "m1", ConversationID: "conv_1", Role: model.RoleUser,
			Content: "Explain caching", Timestamp: base},
		{ID: "m2", ConversationID: "conv_1", Role: model.RoleAssistant,
			Content: "Caching stores...", Timestamp: base.Add(time.Second), Tokens: 42},
		{ID: "m3", ConversationID: "conv_1", Role: model.RoleUser,
			Content: "What about eviction?", Timestamp: base.Add(2 * time.Second),
			ThreadID: "thread_a", ParentMessageID: "m2",
			Provider: "openai", Model: "gpt-4o"},
		{ID: "m4", ConversationID: "conv_1", Role: model.RoleAssistant,
			Content: "LRU usually.", Timestamp: base.Add(3 * time.Second),
			ThreadID: "thread_a", ParentMessageID: "m3",
			Provider: "openai", Model: "gpt-4o"},
	}
	return BuildTranscript(conv, msgs)
}

func TestMarkdownExportRendersTree(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "# Caching strategies")
	assert.Contains(t, md, "## Conversation")
	assert.Contains(t, md, "Explain caching")
	assert.Contains(t, md, "Caching stores...")

	// The branch gets its own section with provenance and fork anchor.
	assert.Contains(t, md, "## Branch 1: openai (gpt-4o)")
	assert.Contains(t, md, "> Forked from: Assistant")
	assert.Contains(t, md, "What about eviction?")
	assert.Contains(t, md, "LRU usually.")

	// Branch content renders after the main thread.
	assert.Less(t, strings.Index(md, "Caching stores..."), strings.Index(md, "LRU usually."))

	// Token stats for assistant messages.
	assert.Contains(t, md, "Tokens: 42")
}

func TestMarkdownExportEmptyConversationFails(t *testing.T) {
	empty := BuildTranscript(model.Conversation{ID: "c", Title: "t"}, nil)
	_, err := NewMarkdownExporter(nil).Export(empty)
	assert.Error(t, err)
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := &Options{IncludeMetadata: false, IncludeTimestamps: false}
	out, err := NewMarkdownExporter(opts).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.NotContains(t, md, "---\ntitle:")
	assert.NotContains(t, md, "Session Information")
	assert.NotContains(t, md, "<sub>")
}

func TestJSONExportRoundTrips(t *testing.T) {
	out, err := NewJSONExporter().Export(sampleTranscript())
	require.NoError(t, err)

	var doc jsonDocument
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Equal(t, "conv_1", doc.Conversation.ID)
	require.Len(t, doc.MainThread, 2)
	require.Len(t, doc.Branches, 1)
	assert.Equal(t, "thread_a", doc.Branches[0].ID)
	assert.Equal(t, "m2", doc.Branches[0].ParentMessageID)
	assert.Equal(t, "openai", doc.Branches[0].Provider)
	assert.Len(t, doc.Branches[0].Messages, 2)
}

func TestExportToFileWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := ExportMarkdown(sampleTranscript(), opts)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, dir))
	assert.True(t, strings.HasSuffix(path, ".md"))
	assert.Contains(t, path, "Caching_strategies")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Caching strategies")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"spaces to underscores", "hello world", "hello_world"},
		{"path separators", "a/b\\c", "a-b-c"},
		{"windows reserved", `q:*?"<>|`, "q-------"},
		{"empty falls back", "", "conversation"},
		{"control chars", "a\x01b", "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.input))
		})
	}
}

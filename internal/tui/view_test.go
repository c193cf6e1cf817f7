// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/thread"
)

func testModel() Model {
	m := Model{
		cfg:   config.Default(),
		theme: DarkTheme(),
		keys:  DefaultKeyMap(),
	}
	m.cfg.UI.ShowTokens = true
	return m
}

func TestRenderTranscriptShowsBranchesUnderForkPoint(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	msgs := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "Question", Timestamp: base},
		{ID: "m2", Role: model.RoleAssistant, Content: "Answer", Timestamp: base.Add(time.Second), Tokens: 5},
		{ID: "m3", Role: model.RoleUser, Content: "Branch question",
			ThreadID: "t1", ParentMessageID: "m2", Provider: "openai", Model: "gpt-4o",
			Timestamp: base.Add(2 * time.Second)},
		{ID: "m4", Role: model.RoleAssistant, Content: "Branch answer",
			ThreadID: "t1", ParentMessageID: "m3", Provider: "openai", Model: "gpt-4o",
			Timestamp: base.Add(3 * time.Second)},
	}

	m := testModel()
	m.tree = thread.Group(msgs)
	out := m.renderTranscript()

	assert.Contains(t, out, "Question")
	assert.Contains(t, out, "Answer")
	assert.Contains(t, out, "Branch (openai/gpt-4o)")
	assert.Contains(t, out, "Branch question")
	assert.Contains(t, out, "Branch answer")
	assert.Contains(t, out, "(5 tokens)")
}

func TestRenderTranscriptSurfacesOrphanedBranches(t *testing.T) {
	msgs := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "Main"},
		{ID: "b1", Role: model.RoleUser, Content: "Lost branch",
			ThreadID: "t9", ParentMessageID: "gone"},
	}

	m := testModel()
	m.tree = thread.Group(msgs)
	out := m.renderTranscript()

	assert.Contains(t, out, "missing fork point")
	assert.Contains(t, out, "Lost branch")
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"zero width", "hello", 0, ""},
		{"wide runes count double", "日本語のテキスト", 8, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateWidth(tt.in, tt.width))
		})
	}
}

func TestLastAssistantMainMessageIgnoresBranches(t *testing.T) {
	msgs := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "q"},
		{ID: "m2", Role: model.RoleAssistant, Content: "a"},
		{ID: "b1", Role: model.RoleAssistant, Content: "branch a",
			ThreadID: "t1", ParentMessageID: "m2"},
	}

	m := testModel()
	m.tree = thread.Group(msgs)

	anchor, ok := m.lastAssistantMainMessage()
	assert.True(t, ok)
	assert.Equal(t, "m2", anchor.ID)

	m.tree = thread.Group(nil)
	_, ok = m.lastAssistantMainMessage()
	assert.False(t, ok)
}

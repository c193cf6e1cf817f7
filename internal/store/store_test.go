// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/loom-tui/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "loom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestCreateAndLoadConversation(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateConversation("ollama", "llama3.2")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	conv, err := s.Conversation(id)
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, "ollama", conv.Provider)
	assert.Equal(t, "llama3.2", conv.Model)
	assert.Empty(t, conv.Title)
	assert.False(t, conv.IsDualMode)
	assert.False(t, conv.CreatedAt.IsZero())
	assert.False(t, conv.UpdatedAt.Before(conv.CreatedAt))
}

func TestConversationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Conversation("conv_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateConversation("conv_missing", ConversationUpdate{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteConversation("conv_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Messages("conv_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateConversationMergesFields(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")

	before, _ := s.Conversation(id)

	err := s.UpdateConversation(id, ConversationUpdate{
		Title:          strPtr("My chat"),
		IsDualMode:     boolPtr(true),
		SecondProvider: strPtr("openai"),
		SecondModel:    strPtr("gpt-4o-mini"),
	})
	require.NoError(t, err)

	conv, err := s.Conversation(id)
	require.NoError(t, err)
	assert.Equal(t, "My chat", conv.Title)
	assert.True(t, conv.IsDualMode)
	assert.Equal(t, "openai", conv.SecondProvider)
	assert.Equal(t, "gpt-4o-mini", conv.SecondModel)
	// Untouched fields survive
	assert.Equal(t, "ollama", conv.Provider)
	assert.Equal(t, "llama3.2", conv.Model)
	// updated_at bumped
	assert.True(t, conv.UpdatedAt.After(before.UpdatedAt))
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")

	msgID, err := s.AddMessage(model.NewMessage{
		ConversationID: id, Role: model.RoleUser, Content: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(id))

	_, err = s.Conversation(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Message(msgID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationsListOrderAndPreview(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.CreateConversation("ollama", "llama3.2")
	second, _ := s.CreateConversation("openai", "gpt-4o")

	// Touch the first conversation so it sorts to the top
	_, err := s.AddMessage(model.NewMessage{
		ConversationID: first, Role: model.RoleUser, Content: "preview text here",
	})
	require.NoError(t, err)

	metas, err := s.Conversations()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, first, metas[0].ID)
	assert.Equal(t, second, metas[1].ID)
	assert.Equal(t, 1, metas[0].MessageCount)
	assert.Equal(t, "preview text here", metas[0].Preview)
}

func TestSearchMessages(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")
	_, err := s.AddMessage(model.NewMessage{
		ConversationID: id, Role: model.RoleUser, Content: "tell me about Gophers",
	})
	require.NoError(t, err)

	hits, err := s.SearchMessages("gopher")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)

	none, err := s.SearchMessages("zebras")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestAddMessageAssignsIDAndMonotonicTimestamps(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")

	var prev model.Message
	for i := 0; i < 5; i++ {
		msgID, err := s.AddMessage(model.NewMessage{
			ConversationID: id, Role: model.RoleUser, Content: "m",
		})
		require.NoError(t, err)

		msg, err := s.Message(msgID)
		require.NoError(t, err)
		if prev.ID != "" {
			assert.True(t, msg.Timestamp.After(prev.Timestamp),
				"timestamps must be strictly increasing")
		}
		prev = msg
	}
}

func TestAddMessageRequiresConversation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddMessage(model.NewMessage{
		ConversationID: "conv_missing", Role: model.RoleUser, Content: "x",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddMessageRejectsInvalidRole(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")
	_, err := s.AddMessage(model.NewMessage{
		ConversationID: id, Role: "robot", Content: "x",
	})
	assert.Error(t, err)
}

func TestMessageMutationsBumpConversation(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")
	msgID, _ := s.AddMessage(model.NewMessage{
		ConversationID: id, Role: model.RoleUser, Content: "original",
	})

	before, _ := s.Conversation(id)

	require.NoError(t, s.UpdateMessage(msgID, MessageUpdate{Content: strPtr("edited")}))
	after, _ := s.Conversation(id)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	msg, _ := s.Message(msgID)
	assert.Equal(t, "edited", msg.Content)

	require.NoError(t, s.DeleteMessage(msgID))
	final, _ := s.Conversation(id)
	assert.True(t, final.UpdatedAt.After(after.UpdatedAt))

	_, err := s.Message(msgID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMessageNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateMessage("msg_missing", MessageUpdate{Content: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.DeleteMessage("msg_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// THREAD TESTS
// =============================================================================

func TestThreadMessagesMainThreadOnly(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")

	u1, _ := s.AddMessage(model.NewMessage{ConversationID: id, Role: model.RoleUser, Content: "q1"})
	s.AddMessage(model.NewMessage{ConversationID: id, Role: model.RoleAssistant, Content: "a1"})
	// A branch that must NOT appear in main-thread context
	_, _, err := s.CreateBranchFromMessage(id, u1, "branch question", "openai", "gpt-4o")
	require.NoError(t, err)

	main, err := s.ThreadMessages(id, "")
	require.NoError(t, err)
	require.Len(t, main, 2)
	assert.Equal(t, "q1", main[0].Content)
	assert.Equal(t, "a1", main[1].Content)
}

func TestThreadMessagesIncludesAncestors(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")

	u1, _ := s.AddMessage(model.NewMessage{ConversationID: id, Role: model.RoleUser, Content: "q1"})
	s.AddMessage(model.NewMessage{ConversationID: id, Role: model.RoleAssistant, Content: "a1"})

	userMsgID, threadID, err := s.CreateBranchFromMessage(id, u1, "follow-up", "openai", "gpt-4o")
	require.NoError(t, err)

	// Assistant reply lands on the same thread, parented to the branch user message
	_, err = s.AddMessage(model.NewMessage{
		ConversationID: id, Role: model.RoleAssistant, Content: "branch answer",
		ThreadID: threadID, ParentMessageID: userMsgID,
		Provider: "openai", Model: "gpt-4o",
	})
	require.NoError(t, err)

	ctx, err := s.ThreadMessages(id, threadID)
	require.NoError(t, err)
	require.Len(t, ctx, 3)
	// Ancestor chain first (the forked-from message), then the branch in order
	assert.Equal(t, "q1", ctx[0].Content)
	assert.Equal(t, "follow-up", ctx[1].Content)
	assert.Equal(t, "branch answer", ctx[2].Content)
}

func TestCreateBranchFromMessage(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")
	parent, _ := s.AddMessage(model.NewMessage{ConversationID: id, Role: model.RoleUser, Content: "root"})

	userMsgID, threadID, err := s.CreateBranchFromMessage(id, parent, "alt take", "openai", "gpt-4o")
	require.NoError(t, err)
	assert.NotEmpty(t, threadID)

	msg, err := s.Message(userMsgID)
	require.NoError(t, err)
	assert.Equal(t, threadID, msg.ThreadID)
	assert.Equal(t, parent, msg.ParentMessageID)
	assert.Equal(t, model.RoleUser, msg.Role)
	assert.Equal(t, "openai", msg.Provider)
	assert.Equal(t, "gpt-4o", msg.Model)
}

func TestCreateBranchValidatesParent(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateConversation("ollama", "llama3.2")

	_, _, err := s.CreateBranchFromMessage(id, "msg_missing", "x", "openai", "gpt-4o")
	assert.ErrorIs(t, err, ErrNotFound)

	// Parent belonging to another conversation is rejected
	other, _ := s.CreateConversation("ollama", "llama3.2")
	foreign, _ := s.AddMessage(model.NewMessage{ConversationID: other, Role: model.RoleUser, Content: "x"})
	_, _, err = s.CreateBranchFromMessage(id, foreign, "x", "openai", "gpt-4o")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	cs := model.ChatSettings{
		Provider:     "openai",
		APIKey:       "ENC:ciphertext-here",
		Model:        "gpt-4o",
		Temperature:  0.7,
		MaxTokens:    4096,
		SystemPrompt: "be terse",
	}
	require.NoError(t, s.SaveSettings(cs))

	got, err := s.Settings("openai")
	require.NoError(t, err)
	assert.Equal(t, cs, got)

	// Overwrite on save
	cs.Model = "gpt-4o-mini"
	require.NoError(t, s.SaveSettings(cs))
	got, _ = s.Settings("openai")
	assert.Equal(t, "gpt-4o-mini", got.Model)

	all, err := s.AllSettings()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteSettings("openai"))
	_, err = s.Settings("openai")
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.DeleteSettings("openai")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// EXPORT / IMPORT TESTS
// =============================================================================

func populate(t *testing.T, s *Store) (convID string) {
	t.Helper()
	convID, err := s.CreateConversation("ollama", "llama3.2")
	require.NoError(t, err)
	u1, err := s.AddMessage(model.NewMessage{ConversationID: convID, Role: model.RoleUser, Content: "q1"})
	require.NoError(t, err)
	_, err = s.AddMessage(model.NewMessage{ConversationID: convID, Role: model.RoleAssistant, Content: "a1"})
	require.NoError(t, err)
	_, _, err = s.CreateBranchFromMessage(convID, u1, "alt", "openai", "gpt-4o")
	require.NoError(t, err)
	require.NoError(t, s.SaveSettings(model.ChatSettings{Provider: "openai", APIKey: "ENC:xyz"}))
	return convID
}

func TestExportImportRoundTripIsNoOp(t *testing.T) {
	s := newTestStore(t)
	convID := populate(t, s)

	beforeMsgs, err := s.Messages(convID)
	require.NoError(t, err)
	beforeSettings, err := s.AllSettings()
	require.NoError(t, err)

	snap, err := s.ExportAll()
	require.NoError(t, err)
	require.NoError(t, s.Import(snap))

	afterMsgs, err := s.Messages(convID)
	require.NoError(t, err)
	afterSettings, err := s.AllSettings()
	require.NoError(t, err)

	assert.Equal(t, beforeMsgs, afterMsgs)
	assert.Equal(t, beforeSettings, afterSettings)
}

func TestImportReplacesDivergentData(t *testing.T) {
	s := newTestStore(t)
	populate(t, s)
	snap, err := s.ExportAll()
	require.NoError(t, err)

	// Diverge: add a second conversation after the export
	extra, _ := s.CreateConversation("openai", "gpt-4o")

	require.NoError(t, s.Import(snap))

	_, err = s.Conversation(extra)
	assert.ErrorIs(t, err, ErrNotFound, "import must replace entire tables")

	metas, err := s.Conversations()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestImportKeepsTimestampsMonotonic(t *testing.T) {
	s := newTestStore(t)
	convID := populate(t, s)
	snap, err := s.ExportAll()
	require.NoError(t, err)

	s2 := newTestStore(t)
	require.NoError(t, s2.Import(snap))

	imported, err := s2.Messages(convID)
	require.NoError(t, err)
	last := imported[len(imported)-1].Timestamp

	newID, err := s2.AddMessage(model.NewMessage{
		ConversationID: convID, Role: model.RoleUser, Content: "after import",
	})
	require.NoError(t, err)
	msg, _ := s2.Message(newID)
	assert.True(t, msg.Timestamp.After(last),
		"messages added after import must sort after imported ones")
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	convID := populate(t, s)
	path := filepath.Join(t.TempDir(), "backup.json")

	require.NoError(t, s.WriteSnapshotFile(path))

	s2 := newTestStore(t)
	require.NoError(t, s2.ReadSnapshotFile(path))

	want, _ := s.Messages(convID)
	got, err := s2.Messages(convID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExportKeepsAPIKeysEncrypted(t *testing.T) {
	s := newTestStore(t)
	populate(t, s)

	snap, err := s.ExportAll()
	require.NoError(t, err)
	require.Len(t, snap.Settings, 1)
	assert.Equal(t, "ENC:xyz", snap.Settings[0].APIKey,
		"export must carry ciphertext through untouched")
}

// =============================================================================
// HELPERS
// =============================================================================

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

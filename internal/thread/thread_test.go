// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/loom-tui/internal/model"
)

// msg builds a test message with a timestamp offset in seconds.
func msg(id string, threadID, parentID string, offset int) model.Message {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return model.Message{
		ID:              id,
		ConversationID:  "conv_1",
		Role:            model.RoleUser,
		Content:         "content " + id,
		Timestamp:       base.Add(time.Duration(offset) * time.Second),
		ThreadID:        threadID,
		ParentMessageID: parentID,
	}
}

func TestGroupEmpty(t *testing.T) {
	g := Group(nil)
	assert.Empty(t, g.MainThread)
	assert.Empty(t, g.Branches)
}

func TestGroupMainThreadOnly(t *testing.T) {
	// Deliberately out of order
	g := Group([]model.Message{
		msg("m3", "", "", 3),
		msg("m1", "", "", 1),
		msg("m2", "", "", 2),
	})

	require.Len(t, g.MainThread, 3)
	assert.Equal(t, "m1", g.MainThread[0].ID)
	assert.Equal(t, "m2", g.MainThread[1].ID)
	assert.Equal(t, "m3", g.MainThread[2].ID)
	assert.Empty(t, g.Branches)
}

func TestGroupPartitionsEveryMessageExactlyOnce(t *testing.T) {
	input := []model.Message{
		msg("m1", "", "", 1),
		msg("m2", "", "", 2),
		msg("b1a", "t1", "m1", 3),
		msg("b1b", "t1", "b1a", 4),
		msg("b2a", "t2", "m2", 5),
		msg("m3", "", "", 6),
	}
	g := Group(input)

	seen := make(map[string]int)
	for _, m := range g.MainThread {
		seen[m.ID]++
	}
	for _, b := range g.Branches {
		for _, m := range b.Messages {
			seen[m.ID]++
		}
	}

	require.Len(t, seen, len(input))
	for _, m := range input {
		assert.Equal(t, 1, seen[m.ID], "message %s should appear exactly once", m.ID)
	}
}

func TestGroupBranchMetadata(t *testing.T) {
	first := msg("b1a", "t1", "m1", 3)
	first.Provider = "openai"
	first.Model = "gpt-4o"
	second := msg("b1b", "t1", "b1a", 4)
	second.Role = model.RoleAssistant

	g := Group([]model.Message{second, first, msg("m1", "", "", 1)})

	require.Len(t, g.Branches, 1)
	b := g.Branches[0]
	assert.Equal(t, "t1", b.ID)
	assert.Equal(t, "openai", b.Provider)
	assert.Equal(t, "gpt-4o", b.Model)
	assert.Equal(t, "m1", b.ParentMessageID())
	require.Len(t, b.Messages, 2)
	assert.Equal(t, "b1a", b.Messages[0].ID)
	assert.Equal(t, "b1b", b.Messages[1].ID)
}

func TestGroupBranchesOrderedByForkTime(t *testing.T) {
	g := Group([]model.Message{
		msg("m1", "", "", 1),
		msg("late", "t2", "m1", 10),
		msg("early", "t1", "m1", 5),
	})

	require.Len(t, g.Branches, 2)
	assert.Equal(t, "t1", g.Branches[0].ID)
	assert.Equal(t, "t2", g.Branches[1].ID)
}

func TestBranchesFor(t *testing.T) {
	g := Group([]model.Message{
		msg("m1", "", "", 1),
		msg("m2", "", "", 2),
		msg("b1a", "t1", "m1", 3),
		msg("b2a", "t2", "m1", 4),
		msg("b3a", "t3", "m2", 5),
	})

	forM1 := g.BranchesFor("m1")
	require.Len(t, forM1, 2)
	assert.Equal(t, "t1", forM1[0].ID)
	assert.Equal(t, "t2", forM1[1].ID)

	forM2 := g.BranchesFor("m2")
	require.Len(t, forM2, 1)
	assert.Equal(t, "t3", forM2[0].ID)

	// Leaf with no replies
	assert.Empty(t, g.BranchesFor("b1a"))
	assert.Empty(t, g.BranchesFor("nonexistent"))
}

func TestOrphanedBranchRetainedButInvisible(t *testing.T) {
	g := Group([]model.Message{
		msg("m1", "", "", 1),
		msg("orph", "t9", "deleted-msg", 2),
	})

	// Orphan still comes back from Group
	require.Len(t, g.Branches, 1)
	assert.Equal(t, "t9", g.Branches[0].ID)

	// But no main-thread message claims it
	assert.Empty(t, g.BranchesFor("m1"))
	assert.Empty(t, g.BranchesFor("deleted-msg"))

	orphans := g.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "t9", orphans[0].ID)
}

func TestGroupTimestampTiebreakIsDeterministic(t *testing.T) {
	a := msg("a", "", "", 1)
	b := msg("b", "", "", 1) // same timestamp

	g1 := Group([]model.Message{a, b})
	g2 := Group([]model.Message{b, a})

	require.Len(t, g1.MainThread, 2)
	assert.Equal(t, g1.MainThread[0].ID, g2.MainThread[0].ID)
	assert.Equal(t, "a", g1.MainThread[0].ID)
}

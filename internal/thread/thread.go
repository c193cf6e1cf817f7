// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package thread reconstructs the tree view of a conversation from its flat
// message list.
//
// Messages are persisted flat, with ThreadID and ParentMessageID acting as
// edges. Group partitions a timestamp-ordered message list into the main
// thread plus a list of branches; BranchesFor answers "which branches fork
// off this message" for reply indicators. Both are pure functions, O(n) in
// message count.
package thread

import (
	"sort"

	"github.com/jeranaias/loom-tui/internal/model"
)

// =============================================================================
// TYPES
// =============================================================================

// Branch is one named alternate continuation forked off a main-thread
// message. Messages are ordered by timestamp and form a linear
// sub-conversation; no sub-branching inside a branch.
type Branch struct {
	// ID is the branch's thread ID.
	ID string

	// Messages are the branch's messages in timestamp order.
	Messages []model.Message

	// Provider and Model are taken from the branch's first message.
	Provider string
	Model    string
}

// ParentMessageID returns the main-thread message this branch forks off,
// taken from the branch's first message. Empty for a malformed branch.
func (b *Branch) ParentMessageID() string {
	if len(b.Messages) == 0 {
		return ""
	}
	return b.Messages[0].ParentMessageID
}

// Grouped is the reconstructed tree view of one conversation.
type Grouped struct {
	// MainThread holds the messages with no thread ID, in timestamp order.
	MainThread []model.Message

	// Branches holds every branch, ordered by the timestamp of each
	// branch's first message. Orphaned branches (parent message missing)
	// are included here; they simply never show up in BranchesFor.
	Branches []Branch
}

// =============================================================================
// RECONSTRUCTION
// =============================================================================

// Group partitions messages into the main thread and branches.
//
// Every input message lands in exactly one of MainThread or some branch;
// nothing is dropped or duplicated. The input does not need to be sorted.
func Group(messages []model.Message) Grouped {
	var main []model.Message
	byThread := make(map[string][]model.Message)
	var order []string // thread IDs in first-seen order, resorted below

	for _, msg := range messages {
		if msg.ThreadID == "" {
			main = append(main, msg)
			continue
		}
		if _, seen := byThread[msg.ThreadID]; !seen {
			order = append(order, msg.ThreadID)
		}
		byThread[msg.ThreadID] = append(byThread[msg.ThreadID], msg)
	}

	sortByTimestamp(main)

	branches := make([]Branch, 0, len(order))
	for _, id := range order {
		msgs := byThread[id]
		sortByTimestamp(msgs)
		branches = append(branches, Branch{
			ID:       id,
			Messages: msgs,
			Provider: msgs[0].Provider,
			Model:    msgs[0].Model,
		})
	}

	// Order branches by when they were forked.
	sort.SliceStable(branches, func(i, j int) bool {
		return branches[i].Messages[0].Timestamp.Before(branches[j].Messages[0].Timestamp)
	})

	return Grouped{MainThread: main, Branches: branches}
}

// BranchesFor returns every branch whose first message replies to the given
// main-thread message ID. Returns an empty slice for a message with no
// replies.
func (g *Grouped) BranchesFor(messageID string) []Branch {
	var out []Branch
	for _, b := range g.Branches {
		if b.ParentMessageID() == messageID {
			out = append(out, b)
		}
	}
	return out
}

// Orphans returns the branches whose parent message does not exist in the
// main thread. These are retained rather than purged; callers decide how to
// surface them.
func (g *Grouped) Orphans() []Branch {
	known := make(map[string]bool, len(g.MainThread))
	for _, msg := range g.MainThread {
		known[msg.ID] = true
	}

	var out []Branch
	for _, b := range g.Branches {
		if !known[b.ParentMessageID()] {
			out = append(out, b)
		}
	}
	return out
}

// sortByTimestamp sorts messages in place by timestamp, with ID as a
// deterministic tiebreak. Store-assigned timestamps are strictly monotonic,
// so the tiebreak only matters for messages from imports or other stores.
func sortByTimestamp(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/orchestrator"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SlotUpdateMsg carries a streaming slot update from the orchestrator.
// Sent from streaming goroutines via Program.Send.
type SlotUpdateMsg struct {
	Slot *orchestrator.Slot
}

// conversationsLoadedMsg delivers the conversation list.
type conversationsLoadedMsg struct {
	items []model.ConversationMeta
}

// conversationLoadedMsg delivers one conversation with its messages.
type conversationLoadedMsg struct {
	conv model.Conversation
	msgs []model.Message
}

// streamStartedMsg reports the slots launched by a send.
type streamStartedMsg struct {
	slots []*orchestrator.Slot
}

// exportedMsg reports a finished transcript export.
type exportedMsg struct {
	path string
}

// renderTickMsg drives throttled re-rendering while streams are active.
type renderTickMsg struct {
	at time.Time
}

// errMsg carries an operation failure for status display.
type errMsg struct {
	err error
}

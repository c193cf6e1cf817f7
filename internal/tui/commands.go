// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/export"
	"github.com/jeranaias/loom-tui/internal/orchestrator"
	"github.com/jeranaias/loom-tui/internal/store"
)

// renderInterval caps streaming redraws at roughly 30fps.
const renderInterval = 33 * time.Millisecond

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) loadConversationsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.store.Conversations()
		if err != nil {
			return errMsg{err}
		}
		return conversationsLoadedMsg{items}
	}
}

func (m *Model) openConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		conv, err := m.store.Conversation(id)
		if err != nil {
			return errMsg{err}
		}
		msgs, err := m.store.Messages(id)
		if err != nil {
			return errMsg{err}
		}
		return conversationLoadedMsg{conv: conv, msgs: msgs}
	}
}

func (m *Model) newConversationCmd() tea.Cmd {
	return func() tea.Msg {
		id, err := m.store.CreateConversation(m.cfg.DefaultProvider, m.cfg.DefaultModel)
		if err != nil {
			return errMsg{err}
		}
		conv, err := m.store.Conversation(id)
		if err != nil {
			return errMsg{err}
		}
		return conversationLoadedMsg{conv: conv}
	}
}

func (m *Model) deleteConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.store.DeleteConversation(id); err != nil {
			return errMsg{err}
		}
		items, err := m.store.Conversations()
		if err != nil {
			return errMsg{err}
		}
		return conversationsLoadedMsg{items}
	}
}

// sendCmd starts the stream(s) for a user message: a dual fan-out when the
// conversation has a second provider, a plain main-thread send otherwise.
func (m *Model) sendCmd(content string) tea.Cmd {
	convID := m.conv.ID
	dual := m.conv.HasSecondProvider()
	return func() tea.Msg {
		if dual {
			slots, err := m.orch.SendDual(context.Background(), convID, content)
			if err != nil {
				return errMsg{err}
			}
			return streamStartedMsg{slots}
		}
		slot, err := m.orch.Send(context.Background(), convID, content)
		if err != nil {
			return errMsg{err}
		}
		return streamStartedMsg{[]*orchestrator.Slot{slot}}
	}
}

func (m *Model) branchCmd(parentMessageID, content string) tea.Cmd {
	convID := m.conv.ID
	return func() tea.Msg {
		slot, err := m.orch.SendBranch(context.Background(), convID, parentMessageID, content)
		if err != nil {
			return errMsg{err}
		}
		return streamStartedMsg{[]*orchestrator.Slot{slot}}
	}
}

// replyCmd continues an existing branch: the new user message and the
// streamed reply both stay inside that thread.
func (m *Model) replyCmd(threadID, parentMessageID, content string) tea.Cmd {
	convID := m.conv.ID
	return func() tea.Msg {
		slot, err := m.orch.SendToThread(context.Background(), convID, threadID, parentMessageID, content)
		if err != nil {
			return errMsg{err}
		}
		return streamStartedMsg{[]*orchestrator.Slot{slot}}
	}
}

// toggleDualCmd flips dual mode on the open conversation. Turning it on
// pairs the primary with the partner chosen by secondPairing; turning it
// off clears the second provider and model.
func (m *Model) toggleDualCmd() tea.Cmd {
	convID := m.conv.ID
	var upd store.ConversationUpdate
	if m.conv.HasSecondProvider() {
		off, empty := false, ""
		upd = store.ConversationUpdate{IsDualMode: &off, SecondProvider: &empty, SecondModel: &empty}
	} else {
		name, mdl, ok := m.secondPairing()
		if !ok {
			m.statusMsg = "No second provider or model configured"
			return nil
		}
		on := true
		upd = store.ConversationUpdate{IsDualMode: &on, SecondProvider: &name, SecondModel: &mdl}
	}
	return func() tea.Msg {
		if err := m.store.UpdateConversation(convID, upd); err != nil {
			return errMsg{err}
		}
		conv, err := m.store.Conversation(convID)
		if err != nil {
			return errMsg{err}
		}
		msgs, err := m.store.Messages(convID)
		if err != nil {
			return errMsg{err}
		}
		return conversationLoadedMsg{conv: conv, msgs: msgs}
	}
}

// searchCmd filters the conversation list by title and message content.
func (m *Model) searchCmd(query string) tea.Cmd {
	return func() tea.Msg {
		items, err := m.store.SearchMessages(query)
		if err != nil {
			return errMsg{err}
		}
		return conversationsLoadedMsg{items}
	}
}

func (m *Model) exportCmd() tea.Cmd {
	convID := m.conv.ID
	opts := &export.Options{
		OutputDir:         m.cfg.Export.OutputDir,
		IncludeMetadata:   m.cfg.Export.IncludeMetadata,
		IncludeTimestamps: m.cfg.Export.IncludeTimestamps,
	}
	return func() tea.Msg {
		conv, err := m.store.Conversation(convID)
		if err != nil {
			return errMsg{err}
		}
		msgs, err := m.store.Messages(convID)
		if err != nil {
			return errMsg{err}
		}
		path, err := export.ExportMarkdown(export.BuildTranscript(conv, msgs), opts)
		if err != nil {
			return errMsg{err}
		}
		return exportedMsg{path}
	}
}

// renderTickCmd schedules the next streaming redraw.
func renderTickCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return renderTickMsg{at: t}
	})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/orchestrator"
	"github.com/jeranaias/loom-tui/internal/thread"
)

// chromeHeight is the number of rows used outside the viewport: header,
// separator, input line, status bar.
const chromeHeight = 5

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(1, msg.Height-chromeHeight))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(1, msg.Height-chromeHeight)
		}
		m.refreshViewport(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversationsLoadedMsg:
		m.conversations = msg.items
		if m.selected >= len(m.conversations) {
			m.selected = max(0, len(m.conversations)-1)
		}
		m.view = viewList
		return m, nil

	case conversationLoadedMsg:
		m.conv = msg.conv
		m.tree = thread.Group(msg.msgs)
		m.view = viewChat
		m.searching = false
		m.input.SetValue("")
		m.input.Focus()
		m.refreshViewport(true)
		return m, nil

	case streamStartedMsg:
		m.active = append(m.active, msg.slots...)
		m.statusMsg = ""
		m.lastErr = nil
		cmd := m.scheduleRender()
		return m, cmd

	case SlotUpdateMsg:
		return m.handleSlotUpdate(msg.Slot)

	case renderTickMsg:
		m.renderScheduled = false
		if m.view == viewChat && m.streaming() {
			m.refreshViewport(true)
			return m, m.scheduleRender()
		}
		return m, nil

	case exportedMsg:
		m.statusMsg = "Exported to " + msg.path
		return m, nil

	case errMsg:
		m.lastErr = msg.err
		return m, nil
	}

	return m, nil
}

// handleSlotUpdate reacts to orchestrator progress. Fragments are handled
// lazily: the render tick reads slot text directly, so a mid-stream update
// only needs to make sure a tick is scheduled. Terminal transitions reload
// the conversation from the store.
func (m Model) handleSlotUpdate(slot *orchestrator.Slot) (tea.Model, tea.Cmd) {
	if slot.ConversationID != m.conv.ID {
		return m, nil
	}

	if !slot.Status().Terminal() {
		return m, m.scheduleRender()
	}

	switch slot.Status() {
	case orchestrator.StatusFailed:
		if err := slot.Err(); err != nil {
			m.lastErr = err
		}
	case orchestrator.StatusCancelled:
		m.statusMsg = "Cancelled"
	}

	if !m.streaming() {
		m.pruneSlots()
	}
	return m, m.openConversationCmd(m.conv.ID)
}

// handleKey dispatches key presses for the active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancelStreams()
		return m, tea.Quit
	}

	if m.view == viewList {
		return m.handleListKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search mode captures the keyboard until submitted or dismissed.
	if m.searching {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.searching = false
			m.input.SetValue("")
			return m, m.loadConversationsCmd()
		case key.Matches(msg, m.keys.Submit):
			query := strings.TrimSpace(m.input.Value())
			m.searching = false
			m.input.SetValue("")
			m.selected = 0
			return m, m.searchCmd(query)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.conversations)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Submit):
		if len(m.conversations) > 0 {
			return m, m.openConversationCmd(m.conversations[m.selected].ID)
		}
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.SetValue("")
		m.input.Focus()
	case key.Matches(msg, m.keys.Cancel):
		return m, m.loadConversationsCmd()
	case key.Matches(msg, m.keys.NewConv):
		return m, m.newConversationCmd()
	case key.Matches(msg, m.keys.Delete):
		if len(m.conversations) > 0 {
			return m, m.deleteConversationCmd(m.conversations[m.selected].ID)
		}
	}
	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		content := strings.TrimSpace(m.input.Value())
		if content == "" || m.streaming() {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.sendCmd(content)

	case key.Matches(msg, m.keys.Branch):
		content := strings.TrimSpace(m.input.Value())
		if content == "" || m.streaming() {
			return m, nil
		}
		anchor, ok := m.lastAssistantMainMessage()
		if !ok {
			m.statusMsg = "Nothing to branch from yet"
			return m, nil
		}
		m.input.SetValue("")
		return m, m.branchCmd(anchor.ID, content)

	case key.Matches(msg, m.keys.Reply):
		content := strings.TrimSpace(m.input.Value())
		if content == "" || m.streaming() {
			return m, nil
		}
		branch, ok := m.latestBranch()
		if !ok {
			m.statusMsg = "No branch to reply in yet"
			return m, nil
		}
		parent := branch.Messages[len(branch.Messages)-1].ID
		m.input.SetValue("")
		return m, m.replyCmd(branch.ID, parent, content)

	case key.Matches(msg, m.keys.ToggleDual):
		if m.streaming() {
			return m, nil
		}
		return m, m.toggleDualCmd()

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming() {
			m.cancelStreams()
			return m, nil
		}

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.NewConv):
		return m, m.newConversationCmd()

	case key.Matches(msg, m.keys.Back):
		return m, m.loadConversationsCmd()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// scheduleRender ensures exactly one pending render tick.
func (m *Model) scheduleRender() tea.Cmd {
	if m.renderScheduled {
		return nil
	}
	m.renderScheduled = true
	return renderTickCmd()
}

// cancelStreams cancels every in-flight slot for the open conversation.
func (m *Model) cancelStreams() {
	for _, slot := range m.active {
		slot.Cancel()
	}
}

// pruneSlots drops terminal slots from the active list.
func (m *Model) pruneSlots() {
	kept := m.active[:0]
	for _, slot := range m.active {
		if !slot.Status().Terminal() {
			kept = append(kept, slot)
		}
	}
	m.active = kept
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready || m.view != viewChat {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// statusLine builds the one-line status bar content.
func (m *Model) statusLine() string {
	if m.lastErr != nil {
		return m.theme.StatusError.Render("Error: " + m.lastErr.Error())
	}
	if m.streaming() {
		return m.theme.StatusBar.Render(fmt.Sprintf("%s streaming... Esc to cancel", m.spinner.View()))
	}
	if m.statusMsg != "" {
		return m.theme.StatusBar.Render(m.statusMsg)
	}

	var parts []string
	for _, b := range m.keys.ShortHelp() {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	return m.theme.StatusBar.Render(strings.Join(parts, "  |  "))
}

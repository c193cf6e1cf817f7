// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/orchestrator"
	"github.com/jeranaias/loom-tui/internal/thread"
)

// View renders the active screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.view == viewList {
		return m.viewConversationList()
	}
	return m.viewChat()
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

func (m Model) viewConversationList() string {
	var sb strings.Builder

	sb.WriteString(m.theme.Header.Render("loom"))
	sb.WriteString("  ")
	sb.WriteString(m.theme.HeaderMeta.Render("conversations"))
	sb.WriteString("\n\n")

	if m.searching {
		sb.WriteString(m.theme.InputPrompt.Render("Search: "))
		sb.WriteString(m.input.View())
		sb.WriteString("\n\n")
	}

	if len(m.conversations) == 0 {
		sb.WriteString(m.theme.Faint.Render("  No conversations yet. Press C-n to start one.\n"))
	}

	visible := m.height - chromeHeight
	for i, item := range m.conversations {
		if visible > 0 && i >= visible {
			sb.WriteString(m.theme.Faint.Render(fmt.Sprintf("  ... and %d more\n", len(m.conversations)-i)))
			break
		}

		title := item.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s  %s", title,
			m.theme.ListMeta.Render(fmt.Sprintf("%s/%s, %d messages", item.Provider, item.Model, item.MessageCount)))

		if i == m.selected {
			sb.WriteString(m.theme.ListActive.Render("> " + line))
		} else {
			sb.WriteString(m.theme.ListItem.Render(line))
		}
		sb.WriteString("\n")
		if item.Preview != "" {
			sb.WriteString(m.theme.Faint.Render("    " + truncateWidth(item.Preview, m.width-6)))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(m.theme.StatusBar.Render("Enter open  |  / search  |  C-n new  |  C-x delete  |  C-q quit"))
	return sb.String()
}

// =============================================================================
// CHAT VIEW
// =============================================================================

func (m Model) viewChat() string {
	var sb strings.Builder

	// Header: title plus provider/model, dual-mode pairing when configured.
	title := m.conv.Title
	if title == "" {
		title = "New conversation"
	}
	meta := fmt.Sprintf("%s/%s", m.conv.Provider, m.conv.Model)
	if m.conv.HasSecondProvider() {
		meta += fmt.Sprintf(" + %s/%s", m.conv.SecondProvider, m.conv.SecondModel)
	}
	sb.WriteString(m.theme.Header.Render(truncateWidth(title, m.width/2)))
	sb.WriteString("  ")
	sb.WriteString(m.theme.HeaderMeta.Render(meta))
	sb.WriteString("\n")
	sb.WriteString(m.theme.Faint.Render(strings.Repeat("-", max(1, m.width))))
	sb.WriteString("\n")

	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")

	sb.WriteString(m.theme.InputPrompt.Render("> "))
	sb.WriteString(m.input.View())
	sb.WriteString("\n")

	sb.WriteString(m.statusLine())
	return sb.String()
}

// renderTranscript renders the message tree plus any live streaming text.
func (m Model) renderTranscript() string {
	var sb strings.Builder

	for _, msg := range m.tree.MainThread {
		m.writeMessage(&sb, msg)

		// Reply indicators under messages that have branches.
		for _, branch := range m.tree.BranchesFor(msg.ID) {
			m.writeBranch(&sb, branch)
		}
	}

	// Orphaned branches still render, at the end.
	for _, branch := range m.tree.Orphans() {
		sb.WriteString(m.theme.Faint.Render("(branch with missing fork point)"))
		sb.WriteString("\n")
		m.writeBranch(&sb, branch)
	}

	// Live streams not yet part of the tree.
	for _, slot := range m.active {
		if slot.Status().Terminal() || slot.ConversationID != m.conv.ID {
			continue
		}
		m.writeLiveSlot(&sb, slot)
	}

	return sb.String()
}

func (m Model) writeMessage(sb *strings.Builder, msg model.Message) {
	label := m.theme.UserLabel
	if msg.Role == model.RoleAssistant {
		label = m.theme.AssistLabel
	}
	sb.WriteString(label.Render(msg.Role.DisplayName()))
	if m.cfg.UI.ShowTokens && msg.Tokens > 0 {
		sb.WriteString(m.theme.Faint.Render(fmt.Sprintf("  (%d tokens)", msg.Tokens)))
	}
	sb.WriteString("\n")
	sb.WriteString(msg.Content)
	sb.WriteString("\n\n")
}

func (m Model) writeBranch(sb *strings.Builder, branch thread.Branch) {
	head := "Branch"
	if branch.Provider != "" {
		head = fmt.Sprintf("Branch (%s/%s)", branch.Provider, branch.Model)
	}
	sb.WriteString(m.theme.BranchHead.Render("  +- " + head))
	sb.WriteString("\n")

	for _, msg := range branch.Messages {
		line := fmt.Sprintf("%s: %s", msg.Role.DisplayName(), msg.Content)
		sb.WriteString(m.theme.BranchBody.Render(line))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// writeLiveSlot renders the in-progress accumulator of a streaming slot.
func (m Model) writeLiveSlot(sb *strings.Builder, slot *orchestrator.Slot) {
	if slot.ThreadID != "" {
		sb.WriteString(m.theme.BranchHead.Render(
			fmt.Sprintf("  +- Branch (%s/%s) streaming", slot.Provider, slot.Model)))
	} else {
		sb.WriteString(m.theme.AssistLabel.Render("Assistant"))
		sb.WriteString(m.theme.Faint.Render("  (streaming)"))
	}
	sb.WriteString("\n")

	text := slot.Text()
	if text == "" {
		text = m.spinner.View()
	}
	if slot.ThreadID != "" {
		sb.WriteString(m.theme.BranchBody.Render(text))
	} else {
		sb.WriteString(m.theme.Streaming.Render(text))
	}
	sb.WriteString("\n\n")
}

// =============================================================================
// HELPERS
// =============================================================================

// truncateWidth cuts a string to a display-cell width, ellipsized.
// UNICODE: width is measured in terminal cells, not runes, so wide CJK
// characters count double.
func truncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

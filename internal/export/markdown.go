// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/thread"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders a transcript to Markdown: frontmatter, the main thread,
// then each branch under a heading naming its fork point and model.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	if t.messageCount() == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	conv := t.Conversation
	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(conv.Title)))
		sb.WriteString(fmt.Sprintf("provider: %s\n", conv.Provider))
		sb.WriteString(fmt.Sprintf("model: %s\n", conv.Model))
		if conv.HasSecondProvider() {
			sb.WriteString(fmt.Sprintf("second_provider: %s\n", conv.SecondProvider))
			sb.WriteString(fmt.Sprintf("second_model: %s\n", conv.SecondModel))
		}
		sb.WriteString(fmt.Sprintf("date: %s\n", conv.CreatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("updated: %s\n", conv.UpdatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", t.messageCount()))
		sb.WriteString(fmt.Sprintf("branches: %d\n", len(t.Tree.Branches)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: loom-tui\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(conv.Title)))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		sb.WriteString(fmt.Sprintf("- **Provider**: %s\n", conv.Provider))
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", conv.Model))
		if conv.HasSecondProvider() {
			sb.WriteString(fmt.Sprintf("- **Second Provider**: %s (%s)\n",
				conv.SecondProvider, conv.SecondModel))
		}
		sb.WriteString(fmt.Sprintf("- **Created**: %s\n", formatTimestamp(conv.CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Last Updated**: %s\n", formatTimestamp(conv.UpdatedAt)))
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", t.messageCount()))
		if len(t.Tree.Branches) > 0 {
			sb.WriteString(fmt.Sprintf("- **Branches**: %d\n", len(t.Tree.Branches)))
		}
		sb.WriteString("\n---\n\n")
	}

	// Main thread
	sb.WriteString("## Conversation\n\n")
	e.writeMessages(&sb, t.Tree.MainThread)

	// Branches, each anchored to its fork message. Branch numbering is
	// fork-time order, matching how they appeared in the conversation.
	for i, branch := range t.Tree.Branches {
		sb.WriteString(fmt.Sprintf("## Branch %d%s\n\n", i+1, e.branchLabel(branch)))
		if anchor := e.forkAnchor(t, branch); anchor != "" {
			sb.WriteString(fmt.Sprintf("> Forked from: %s\n\n", anchor))
		}
		e.writeMessages(&sb, branch.Messages)
	}

	// Footer
	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from loom on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// writeMessages renders one thread's messages with separators.
func (e *MarkdownExporter) writeMessages(sb *strings.Builder, msgs []model.Message) {
	for i, msg := range msgs {
		roleLabel := formatRoleLabel(msg.Role)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				roleLabel, formatShortTimestamp(msg.Timestamp)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", roleLabel))
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if msg.Role == model.RoleAssistant && e.options.IncludeMetadata && msg.Tokens > 0 {
			sb.WriteString(fmt.Sprintf("<sub>Tokens: %d</sub>\n\n", msg.Tokens))
		}

		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}
}

// branchLabel annotates a branch heading with its provider/model, when the
// branch carries them (dual-mode branches always do).
func (e *MarkdownExporter) branchLabel(b thread.Branch) string {
	if b.Provider == "" {
		return ""
	}
	if b.Model == "" {
		return fmt.Sprintf(": %s", b.Provider)
	}
	return fmt.Sprintf(": %s (%s)", b.Provider, b.Model)
}

// forkAnchor describes the main-thread message a branch forks off, quoting
// its opening words so the reader can locate it.
func (e *MarkdownExporter) forkAnchor(t *Transcript, b thread.Branch) string {
	parentID := b.ParentMessageID()
	for _, msg := range t.Tree.MainThread {
		if msg.ID != parentID {
			continue
		}
		excerpt := strings.TrimSpace(msg.Content)
		runes := []rune(excerpt)
		if len(runes) > 60 {
			excerpt = string(runes[:60]) + "..."
		}
		return fmt.Sprintf("%s: %q", msg.Role.DisplayName(), excerpt)
	}
	return ""
}

// formatRoleLabel returns a formatted label for the message role.
func formatRoleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "[User]"
	case model.RoleAssistant:
		return "[Assistant]"
	case model.RoleSystem:
		return "[System]"
	case "":
		return "Unknown"
	default:
		runes := []rune(role.String())
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"sort"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/orchestrator"
	"github.com/jeranaias/loom-tui/internal/store"
	"github.com/jeranaias/loom-tui/internal/thread"
)

// =============================================================================
// VIEW STATE
// =============================================================================

// viewState selects which screen is active.
type viewState int

const (
	viewList viewState = iota // conversation picker
	viewChat                  // one conversation
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the application.
type Model struct {
	cfg   *config.Config
	store *store.Store
	orch  *orchestrator.Orchestrator

	theme Theme
	keys  KeyMap

	width  int
	height int
	ready  bool

	view viewState

	// Conversation list
	conversations []model.ConversationMeta
	selected      int
	searching     bool // list view input doubles as the search box

	// Open conversation
	conv model.Conversation
	tree thread.Grouped

	// Streams in flight for the open conversation.
	// cancelMgr on each slot makes Cancel safe from the update loop.
	active []*orchestrator.Slot

	// renderScheduled guards against stacking render ticks.
	renderScheduled bool

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	statusMsg string
	lastErr   error
}

// New creates the application model.
func New(cfg *config.Config, st *store.Store, orch *orchestrator.Orchestrator) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line

	return Model{
		cfg:     cfg,
		store:   st,
		orch:    orch,
		theme:   ThemeByName(cfg.UI.Theme),
		keys:    DefaultKeyMap(),
		view:    viewList,
		input:   input,
		spinner: sp,
	}
}

// Init loads the conversation list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadConversationsCmd(),
		textinput.Blink,
		m.spinner.Tick,
	)
}

// streaming reports whether any slot for the open conversation is still
// running.
func (m *Model) streaming() bool {
	for _, slot := range m.active {
		if !slot.Status().Terminal() {
			return true
		}
	}
	return false
}

// lastAssistantMainMessage returns the newest assistant message on the main
// thread, the anchor for branching.
func (m *Model) lastAssistantMainMessage() (model.Message, bool) {
	for i := len(m.tree.MainThread) - 1; i >= 0; i-- {
		if m.tree.MainThread[i].Role == model.RoleAssistant {
			return m.tree.MainThread[i], true
		}
	}
	return model.Message{}, false
}

// latestBranch returns the branch with the most recent message, the target
// for thread replies.
func (m *Model) latestBranch() (thread.Branch, bool) {
	var best thread.Branch
	found := false
	for _, b := range m.tree.Branches {
		if len(b.Messages) == 0 {
			continue
		}
		last := b.Messages[len(b.Messages)-1].Timestamp
		if !found || last.After(best.Messages[len(best.Messages)-1].Timestamp) {
			best = b
			found = true
		}
	}
	return best, found
}

// secondPairing picks the dual-mode partner for the open conversation: the
// first other configured provider, falling back to a second model on the
// same provider.
func (m *Model) secondPairing() (name, mdl string, ok bool) {
	names := make([]string, 0, len(m.cfg.Providers))
	for n := range m.cfg.Providers {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if n == m.conv.Provider {
			continue
		}
		if pc := m.cfg.Providers[n]; len(pc.Models) > 0 {
			return n, pc.Models[0], true
		}
	}
	for _, candidate := range m.cfg.Providers[m.conv.Provider].Models {
		if candidate != m.conv.Model {
			return m.conv.Provider, candidate, true
		}
	}
	return "", "", false
}

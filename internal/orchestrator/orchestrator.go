// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/provider"
	"github.com/jeranaias/loom-tui/internal/store"
	"github.com/jeranaias/loom-tui/internal/util"
	"github.com/jeranaias/loom-tui/internal/vault"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotSupported marks hook points without a default implementation.
	// They fail loudly rather than silently succeeding.
	ErrNotSupported = errors.New("not yet supported")

	// ErrDualModeNotConfigured means a dual send was requested on a
	// conversation without a secondary provider/model.
	ErrDualModeNotConfigured = errors.New("conversation has no second provider configured")
)

// titleMaxRunes is the truncation limit for auto-derived titles.
const titleMaxRunes = 50

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// NewProviderFunc constructs a provider by registry ID; injectable for
// tests. The default is provider.New.
type NewProviderFunc func(name string, cfg provider.Config) (provider.Provider, error)

// Options configures an Orchestrator.
type Options struct {
	// NewProvider overrides provider construction (tests). Defaults to
	// provider.New.
	NewProvider NewProviderFunc

	// ProviderConfig supplies the non-secret part of a provider's config
	// (base URL, advertised models), typically from the app config.
	ProviderConfig func(name string) provider.Config

	// OnUpdate is invoked after every fragment append and state change.
	// Called from streaming goroutines; must be safe for concurrent use.
	OnUpdate func(*Slot)
}

// Orchestrator drives send operations: it reads context from the store,
// streams from providers, and commits results back into the store.
type Orchestrator struct {
	store       *store.Store
	vault       *vault.Vault
	newProvider NewProviderFunc
	providerCfg func(name string) provider.Config
	onUpdate    func(*Slot)
	log         *log.Logger

	mu    sync.Mutex
	slots map[string]*Slot // keyed by conversationID + "\x00" + threadID
}

// New creates an orchestrator over a store and vault.
func New(st *store.Store, v *vault.Vault, opts Options) *Orchestrator {
	newProv := opts.NewProvider
	if newProv == nil {
		newProv = provider.New
	}
	provCfg := opts.ProviderConfig
	if provCfg == nil {
		provCfg = func(string) provider.Config { return provider.Config{} }
	}

	return &Orchestrator{
		store:       st,
		vault:       v,
		newProvider: newProv,
		providerCfg: provCfg,
		onUpdate:    opts.OnUpdate,
		log:         log.Default().WithPrefix("orchestrator"),
		slots:       make(map[string]*Slot),
	}
}

// =============================================================================
// SEND OPERATIONS
// =============================================================================

// Send appends a user message to the conversation's main thread and
// streams the assistant reply into it.
func (o *Orchestrator) Send(ctx context.Context, conversationID, content string) (*Slot, error) {
	conv, err := o.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}

	// Main-thread messages inherit provider/model from the conversation.
	if _, err := o.store.AddMessage(model.NewMessage{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        content,
	}); err != nil {
		return nil, err
	}

	return o.startStream(ctx, streamRequest{
		conv:         conv,
		providerName: conv.Provider,
		model:        conv.Model,
		deriveTitle:  true,
	})
}

// SendToThread appends a user message to an existing branch and streams
// the assistant reply into the same branch. parentMessageID is the message
// being replied to.
func (o *Orchestrator) SendToThread(ctx context.Context, conversationID, threadID, parentMessageID, content string) (*Slot, error) {
	conv, err := o.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := o.store.Message(parentMessageID); err != nil {
		return nil, err
	}

	// Branch messages carry their provider/model explicitly, taken from
	// the branch's first message.
	providerName, mdl := conv.Provider, conv.Model
	existing, err := o.store.ThreadMessages(conversationID, threadID)
	if err != nil {
		return nil, err
	}
	for _, msg := range existing {
		if msg.ThreadID == threadID {
			if msg.Provider != "" {
				providerName, mdl = msg.Provider, msg.Model
			}
			break
		}
	}

	userMessageID, err := o.store.AddMessage(model.NewMessage{
		ConversationID:  conv.ID,
		Role:            model.RoleUser,
		Content:         content,
		ThreadID:        threadID,
		ParentMessageID: parentMessageID,
		Provider:        providerName,
		Model:           mdl,
	})
	if err != nil {
		return nil, err
	}

	return o.startStream(ctx, streamRequest{
		conv:            conv,
		threadID:        threadID,
		assistantParent: userMessageID,
		providerName:    providerName,
		model:           mdl,
	})
}

// SendBranch forks a new branch off a main-thread message and streams the
// reply into it. The branch carries the conversation's primary
// provider/model.
func (o *Orchestrator) SendBranch(ctx context.Context, conversationID, parentMessageID, content string) (*Slot, error) {
	conv, err := o.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}

	userMessageID, threadID, err := o.store.CreateBranchFromMessage(
		conv.ID, parentMessageID, content, conv.Provider, conv.Model)
	if err != nil {
		return nil, err
	}

	return o.startStream(ctx, streamRequest{
		conv:            conv,
		threadID:        threadID,
		assistantParent: userMessageID,
		providerName:    conv.Provider,
		model:           conv.Model,
	})
}

// SendDual appends one user message to the main thread, forks one branch
// per configured provider, and streams both replies concurrently. The two
// branches run independent state machines: failure or cancellation of one
// never affects the other, and each commits on its own.
func (o *Orchestrator) SendDual(ctx context.Context, conversationID, content string) ([]*Slot, error) {
	conv, err := o.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasSecondProvider() {
		return nil, ErrDualModeNotConfigured
	}

	parentID, err := o.store.AddMessage(model.NewMessage{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}

	targets := []struct{ provider, model string }{
		{conv.Provider, conv.Model},
		{conv.SecondProvider, conv.SecondModel},
	}

	slots := make([]*Slot, 0, len(targets))
	for _, target := range targets {
		userMessageID, threadID, err := o.store.CreateBranchFromMessage(
			conv.ID, parentID, content, target.provider, target.model)
		if err != nil {
			return slots, err
		}

		slot, err := o.startStream(ctx, streamRequest{
			conv:            conv,
			threadID:        threadID,
			assistantParent: userMessageID,
			providerName:    target.provider,
			model:           target.model,
			deriveTitle:     true,
		})
		if err != nil {
			// The sibling branch keeps streaming; report this one.
			return slots, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// EditMessage replaces a message's content in place. No stream is
// retriggered.
func (o *Orchestrator) EditMessage(messageID, content string) error {
	return o.store.UpdateMessage(messageID, store.MessageUpdate{Content: &content})
}

// Regenerate is the hook point for re-running a stream with context
// truncated before the given message.
func (o *Orchestrator) Regenerate(ctx context.Context, conversationID, beforeMessageID string) (*Slot, error) {
	return nil, fmt.Errorf("regenerate: %w", ErrNotSupported)
}

// =============================================================================
// SLOT TRACKING
// =============================================================================

// ActiveSlot returns the slot for a thread, or nil if none was started.
func (o *Orchestrator) ActiveSlot(conversationID, threadID string) *Slot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.slots[slotKey(conversationID, threadID)]
}

// CancelView cancels the in-flight main-thread stream of a conversation.
// Dual-mode branch streams are left running: cancellation is explicit-
// action-only, not implicit-on-navigation. This is the integration policy
// used by the TUI on conversation switch.
func (o *Orchestrator) CancelView(conversationID string) {
	if slot := o.ActiveSlot(conversationID, ""); slot != nil {
		slot.Cancel()
	}
}

func (o *Orchestrator) registerSlot(slot *Slot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slots[slotKey(slot.ConversationID, slot.ThreadID)] = slot
}

func slotKey(conversationID, threadID string) string {
	return conversationID + "\x00" + threadID
}

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

// streamRequest carries everything one stream needs.
type streamRequest struct {
	conv model.Conversation

	// threadID is empty for main-thread sends.
	threadID string

	// assistantParent is the message the committed assistant message will
	// reference; empty on the main thread.
	assistantParent string

	providerName string
	model        string

	// deriveTitle enables first-exchange title derivation on commit.
	deriveTitle bool
}

// startStream resolves credentials and context, then launches the
// streaming goroutine. Resolution failures (unknown provider, missing or
// undecryptable credential, missing conversation) surface here, before any
// network attempt.
func (o *Orchestrator) startStream(ctx context.Context, req streamRequest) (*Slot, error) {
	if !provider.IsKnown(req.providerName) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, req.providerName)
	}

	// Settings are optional (ollama needs none); a missing row means no
	// key and no overrides.
	settings, err := o.store.Settings(req.providerName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// The decrypted key lives only for provider construction; it is never
	// cached; every send decrypts fresh from the store.
	apiKey, err := o.vault.Decrypt(settings.APIKey)
	if err != nil {
		// Unusable ciphertext is treated as "no key configured".
		o.log.Warn("stored API key is undecryptable", "provider", req.providerName)
		apiKey = ""
	}

	cfg := o.providerCfg(req.providerName)
	cfg.APIKey = apiKey
	prov, err := o.newProvider(req.providerName, cfg)
	cfg.APIKey = ""
	if err != nil {
		return nil, err
	}

	history, err := o.store.ThreadMessages(req.conv.ID, req.threadID)
	if err != nil {
		return nil, err
	}
	wire := make([]provider.ChatMessage, 0, len(history))
	for _, msg := range history {
		wire = append(wire, provider.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	params := provider.Params{
		Model:        req.model,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		SystemPrompt: settings.SystemPrompt,
	}

	slot := newSlot(req.conv.ID, req.threadID, req.providerName, req.model)
	streamCtx, cancel := context.WithCancel(ctx)
	slot.cancelMgr.set(cancel)
	o.registerSlot(slot)

	if err := slot.setStatus(StatusStreaming, nil); err != nil {
		cancel()
		return nil, err
	}
	o.notify(slot)

	go o.run(streamCtx, slot, prov, wire, params, req)
	return slot, nil
}

// run consumes one provider stream to completion, cancellation, or
// failure. Runs in its own goroutine; one instance per slot.
func (o *Orchestrator) run(ctx context.Context, slot *Slot, prov provider.Provider,
	wire []provider.ChatMessage, params provider.Params, req streamRequest) {

	defer slot.cancelMgr.clear()

	ch, err := prov.StreamChat(ctx, wire, params)
	if err != nil {
		o.finish(slot, StatusFailed, err)
		return
	}

	tokens := 0
	for chunk := range ch {
		if chunk.Err != nil {
			if ctx.Err() != nil {
				o.finish(slot, StatusCancelled, nil)
				return
			}
			o.finish(slot, StatusFailed, chunk.Err)
			return
		}
		if chunk.Content != "" {
			slot.appendText(chunk.Content)
			o.notify(slot)
		}
		if chunk.Done {
			tokens = chunk.Tokens
		}
	}

	// The channel closed: either natural completion or cancellation.
	// A cancelled stream persists nothing; the accumulator is discarded.
	if ctx.Err() != nil {
		o.finish(slot, StatusCancelled, nil)
		return
	}
	o.commit(slot, req, tokens)
}

// commit persists the assistant message and derives the conversation
// title on the first exchange.
func (o *Orchestrator) commit(slot *Slot, req streamRequest, tokens int) {
	text := slot.Text()
	if text == "" {
		o.log.Debug("stream ended with no content", "conversation", req.conv.ID)
		o.finish(slot, StatusCommitted, nil)
		return
	}

	msg := model.NewMessage{
		ConversationID:  req.conv.ID,
		Role:            model.RoleAssistant,
		Content:         text,
		ThreadID:        req.threadID,
		ParentMessageID: req.assistantParent,
		Tokens:          tokens,
	}
	// Branch messages carry provider/model explicitly; main-thread
	// messages inherit from the conversation.
	if req.threadID != "" {
		msg.Provider = req.providerName
		msg.Model = req.model
	}

	if _, err := o.store.AddMessage(msg); err != nil {
		o.finish(slot, StatusFailed, err)
		return
	}

	if req.deriveTitle {
		if err := o.deriveTitle(req.conv.ID); err != nil {
			// Title derivation is cosmetic; the commit stands.
			o.log.Warn("failed to derive title", "conversation", req.conv.ID, "err", err)
		}
	}
	o.finish(slot, StatusCommitted, nil)
}

// finish moves a slot to a terminal state and notifies.
func (o *Orchestrator) finish(slot *Slot, status Status, err error) {
	if err != nil {
		o.log.Error("stream failed", "conversation", slot.ConversationID,
			"thread", slot.ThreadID, "provider", slot.Provider, "err", err)
	}
	if trErr := slot.setStatus(status, err); trErr != nil {
		o.log.Error("slot transition rejected", "err", trErr)
		return
	}
	o.notify(slot)
}

func (o *Orchestrator) notify(slot *Slot) {
	if o.onUpdate != nil {
		o.onUpdate(slot)
	}
}

// =============================================================================
// TITLE DERIVATION
// =============================================================================

// deriveTitle sets the conversation title from the first user message
// when, after the first assistant reply, the main thread holds at most
// two messages. Content over 50 runes is cut to the first 50 with a
// trailing ellipsis.
func (o *Orchestrator) deriveTitle(conversationID string) error {
	msgs, err := o.store.Messages(conversationID)
	if err != nil {
		return err
	}

	mainCount := 0
	firstUser := ""
	for _, msg := range msgs {
		if !msg.IsMainThread() {
			continue
		}
		mainCount++
		if firstUser == "" && msg.Role == model.RoleUser {
			firstUser = msg.Content
		}
	}
	if mainCount > 2 || firstUser == "" {
		return nil
	}

	title := firstUser
	if util.RuneLen(title) > titleMaxRunes {
		title = util.TruncateRunesNoEllipsis(title, titleMaxRunes) + "..."
	}
	return o.store.UpdateConversation(conversationID, store.ConversationUpdate{Title: &title})
}

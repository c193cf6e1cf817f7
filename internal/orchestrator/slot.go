// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// SLOT
// =============================================================================

// Slot is one streaming operation: a conversation thread being actively
// replied to. The accumulator is exposed for live display; it is only
// persisted on commit.
type Slot struct {
	// Identity (immutable after creation)
	ConversationID string
	ThreadID       string // empty for the main thread
	Provider       string
	Model          string

	mu     sync.Mutex
	status Status
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	text strings.Builder
	err  error

	cancelMgr *cancelManager
	done      chan struct{}
}

func newSlot(conversationID, threadID, providerName, model string) *Slot {
	return &Slot{
		ConversationID: conversationID,
		ThreadID:       threadID,
		Provider:       providerName,
		Model:          model,
		status:         StatusIdle,
		cancelMgr:      newCancelManager(),
		done:           make(chan struct{}),
	}
}

// Status returns the slot's current state.
func (s *Slot) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Text returns the accumulated response text so far.
func (s *Slot) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Err returns the failure reason after StatusFailed, nil otherwise.
func (s *Slot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel closed when the slot reaches a terminal state.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the stream. Idempotent: cancelling twice, or after natural
// completion, is a no-op.
func (s *Slot) Cancel() {
	s.cancelMgr.cancel()
}

// appendText adds a fragment to the accumulator.
func (s *Slot) appendText(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.WriteString(fragment)
}

// setStatus transitions the slot, closing done on terminal states.
// Invalid transitions are rejected (e.g. Failed -> Committed).
func (s *Slot) setStatus(to Status, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validTransition(s.status, to) {
		return fmt.Errorf("invalid status transition from %s to %s", s.status, to)
	}
	alreadyTerminal := s.status.Terminal()
	s.status = to
	if err != nil {
		s.err = err
	}
	if to.Terminal() && !alreadyTerminal {
		close(s.done)
	}
	return nil
}

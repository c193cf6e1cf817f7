// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

// =============================================================================
// SLOT STATUS
// =============================================================================

// Status represents the state of one streaming slot.
type Status string

const (
	// StatusIdle indicates the slot has been created but not started.
	StatusIdle Status = "Idle"

	// StatusStreaming indicates fragments are being consumed.
	StatusStreaming Status = "Streaming"

	// StatusCommitted indicates the stream ended naturally and the
	// assistant message was persisted.
	StatusCommitted Status = "Committed"

	// StatusCancelled indicates the user stopped the stream; nothing was
	// persisted.
	StatusCancelled Status = "Cancelled"

	// StatusFailed indicates the provider stream failed; nothing was
	// persisted.
	StatusFailed Status = "Failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCommitted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// validTransition reports whether a status change is allowed.
// Valid transitions: Idle -> Streaming -> Committed/Cancelled/Failed.
// Setting the same status is idempotent; terminal states never transition.
func validTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusIdle:
		return to == StatusStreaming || to == StatusCancelled || to == StatusFailed
	case StatusStreaming:
		return to.Terminal()
	default:
		return false
	}
}

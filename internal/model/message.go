// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single persisted message in a conversation.
//
// ThreadID and ParentMessageID encode the tree: an empty ThreadID means the
// message is on the main thread; a branch's first message carries a
// ParentMessageID referencing the main-thread message it replies to, and
// later branch messages may reference the immediately preceding message in
// that branch.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Timestamp is assigned by the store on insert and defines message
	// ordering within a thread. Never client-supplied.
	Timestamp time.Time `json:"timestamp"`

	// Tree edges
	ThreadID        string `json:"thread_id,omitempty"`
	ParentMessageID string `json:"parent_message_id,omitempty"`

	// Provenance: which provider/model produced (or will produce) this
	// message. Inherited from the conversation for main-thread messages,
	// explicit for branch messages.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Tokens is the usage count if the provider supplied one.
	Tokens int `json:"tokens,omitempty"`
}

// IsMainThread reports whether the message belongs to the main thread.
func (m *Message) IsMainThread() bool {
	return m.ThreadID == ""
}

// NewMessage describes a message to be inserted. The store assigns the ID
// and timestamp.
type NewMessage struct {
	ConversationID  string
	Role            Role
	Content         string
	ThreadID        string
	ParentMessageID string
	Provider        string
	Model           string
	Tokens          int
}

// =============================================================================
// ID GENERATION
// =============================================================================

// NewMessageID creates a unique message ID.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// NewConversationID creates a unique conversation ID.
func NewConversationID() string {
	return "conv_" + uuid.NewString()
}

// NewThreadID creates a unique branch thread ID.
func NewThreadID() string {
	return "thread_" + uuid.NewString()
}

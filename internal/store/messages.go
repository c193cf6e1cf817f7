// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/loom-tui/internal/model"
)

// =============================================================================
// MESSAGE CRUD
// =============================================================================

// AddMessage inserts a message, assigning its ID and timestamp, and bumps
// the conversation's updated_at. The conversation must exist.
func (s *Store) AddMessage(msg model.NewMessage) (string, error) {
	if !msg.Role.Valid() {
		return "", fmt.Errorf("invalid role %q", msg.Role)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := conversationExists(tx, msg.ConversationID); err != nil {
		return "", err
	}

	id := model.NewMessageID()
	ts := s.nextTimestamp()

	_, err = tx.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, timestamp,
		                       thread_id, parent_message_id, provider, model, tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, msg.ConversationID, string(msg.Role), msg.Content, ts,
		msg.ThreadID, msg.ParentMessageID, msg.Provider, msg.Model, msg.Tokens,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	if err := touchConversation(tx, msg.ConversationID, s.nextTimestamp()); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// MessageUpdate describes a partial message update. Nil fields are left
// unchanged.
type MessageUpdate struct {
	Content *string
	Tokens  *int
}

// UpdateMessage edits a message in place and bumps the owning
// conversation's updated_at.
func (s *Store) UpdateMessage(id string, upd MessageUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	convID, err := messageConversation(tx, id)
	if err != nil {
		return err
	}

	if upd.Content != nil {
		if _, err := tx.Exec("UPDATE messages SET content = ? WHERE id = ?", *upd.Content, id); err != nil {
			return fmt.Errorf("failed to update message: %w", err)
		}
	}
	if upd.Tokens != nil {
		if _, err := tx.Exec("UPDATE messages SET tokens = ? WHERE id = ?", *upd.Tokens, id); err != nil {
			return fmt.Errorf("failed to update message: %w", err)
		}
	}

	if err := touchConversation(tx, convID, s.nextTimestamp()); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteMessage removes one message and bumps the owning conversation's
// updated_at.
func (s *Store) DeleteMessage(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	convID, err := messageConversation(tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if err := touchConversation(tx, convID, s.nextTimestamp()); err != nil {
		return err
	}
	return tx.Commit()
}

// Message loads one message by ID.
func (s *Store) Message(id string) (model.Message, error) {
	row := s.db.QueryRow(selectMessage+" WHERE id = ?", id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

// =============================================================================
// TREE-AWARE READS
// =============================================================================

// Messages returns every message of a conversation, main thread and all
// branches, ordered by timestamp. This is the input for thread.Group.
func (s *Store) Messages(conversationID string) ([]model.Message, error) {
	if err := s.requireConversation(conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		selectMessage+" WHERE conversation_id = ? ORDER BY timestamp, id",
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ThreadMessages returns the exact linear context for one thread.
//
// With an empty threadID it returns the main thread only. With a branch
// threadID it returns that branch's messages, prepended with the chain of
// ancestors found by following parent_message_id back into the main
// thread. This is the context handed to the provider: it reconstructs what
// the model already said without re-sending unrelated branches.
func (s *Store) ThreadMessages(conversationID, threadID string) ([]model.Message, error) {
	if err := s.requireConversation(conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		selectMessage+" WHERE conversation_id = ? AND thread_id = ? ORDER BY timestamp, id",
		conversationID, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if threadID == "" || len(msgs) == 0 {
		return msgs, nil
	}

	ancestors, err := s.ancestorChain(conversationID, msgs[0].ParentMessageID)
	if err != nil {
		return nil, err
	}
	return append(ancestors, msgs...), nil
}

// ancestorChain walks parent_message_id links starting at id, returning the
// chain in chronological order. Missing ancestors terminate the walk
// (orphaned branch); cycles are guarded against.
func (s *Store) ancestorChain(conversationID, id string) ([]model.Message, error) {
	var chain []model.Message
	visited := make(map[string]bool)

	for id != "" && !visited[id] {
		visited[id] = true

		row := s.db.QueryRow(selectMessage+" WHERE id = ? AND conversation_id = ?",
			id, conversationID)
		msg, err := scanMessage(row)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load ancestor: %w", err)
		}

		chain = append([]model.Message{msg}, chain...)
		id = msg.ParentMessageID
	}
	return chain, nil
}

// =============================================================================
// BRANCHING
// =============================================================================

// CreateBranchFromMessage allocates a fresh thread ID and inserts a new
// user message on it, replying to parentMessageID. Returns the new user
// message ID and the thread ID so the caller can stream a reply into the
// same thread.
func (s *Store) CreateBranchFromMessage(conversationID, parentMessageID, userContent, provider, mdl string) (userMessageID, threadID string, err error) {
	parent, err := s.Message(parentMessageID)
	if err != nil {
		return "", "", err
	}
	if parent.ConversationID != conversationID {
		return "", "", fmt.Errorf("message %s in conversation %s: %w",
			parentMessageID, conversationID, ErrNotFound)
	}

	threadID = model.NewThreadID()
	userMessageID, err = s.AddMessage(model.NewMessage{
		ConversationID:  conversationID,
		Role:            model.RoleUser,
		Content:         userContent,
		ThreadID:        threadID,
		ParentMessageID: parentMessageID,
		Provider:        provider,
		Model:           mdl,
	})
	if err != nil {
		return "", "", err
	}

	s.log.Debug("created branch", "conversation", conversationID,
		"thread", threadID, "parent", parentMessageID)
	return userMessageID, threadID, nil
}

// =============================================================================
// HELPERS
// =============================================================================

const selectMessage = `SELECT id, conversation_id, role, content, timestamp,
	thread_id, parent_message_id, provider, model, tokens FROM messages`

func scanMessage(row rowScanner) (model.Message, error) {
	var m model.Message
	var role string
	var ts int64
	err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &ts,
		&m.ThreadID, &m.ParentMessageID, &m.Provider, &m.Model, &m.Tokens)
	if err != nil {
		return model.Message{}, err
	}
	m.Role = model.Role(role)
	m.Timestamp = tsToTime(ts)
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// requireConversation validates that a conversation exists.
func (s *Store) requireConversation(id string) error {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM conversations WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	return nil
}

// conversationExists is the transactional variant of requireConversation.
func conversationExists(tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRow("SELECT 1 FROM conversations WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	return nil
}

// messageConversation returns the conversation owning a message.
func messageConversation(tx *sql.Tx, id string) (string, error) {
	var convID string
	err := tx.QueryRow("SELECT conversation_id FROM messages WHERE id = ?", id).Scan(&convID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to check message: %w", err)
	}
	return convID, nil
}

// touchConversation bumps updated_at inside an open transaction.
func touchConversation(tx *sql.Tx, id string, ts int64) error {
	if _, err := tx.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", ts, id); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

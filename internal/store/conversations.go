// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// CONVERSATION CRUD
// =============================================================================

// CreateConversation creates an empty conversation for the given
// provider/model pair and returns its ID.
func (s *Store) CreateConversation(provider, model string) (string, error) {
	id := newConversationID()
	now := s.nextTimestamp()

	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title, provider, model, created_at, updated_at)
		 VALUES (?, '', ?, ?, ?, ?)`,
		id, provider, model, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	s.log.Debug("created conversation", "id", id, "provider", provider, "model", model)
	return id, nil
}

// ConversationUpdate describes a partial conversation update. Nil fields
// are left unchanged.
type ConversationUpdate struct {
	Title          *string
	Provider       *string
	Model          *string
	IsDualMode     *bool
	SecondProvider *string
	SecondModel    *string
}

// UpdateConversation merges the given fields into an existing conversation
// and bumps updated_at. Unknown IDs fail with ErrNotFound.
func (s *Store) UpdateConversation(id string, upd ConversationUpdate) error {
	var sets []string
	var args []any

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Provider != nil {
		add("provider", *upd.Provider)
	}
	if upd.Model != nil {
		add("model", *upd.Model)
	}
	if upd.IsDualMode != nil {
		add("is_dual_mode", boolToInt(*upd.IsDualMode))
	}
	if upd.SecondProvider != nil {
		add("second_provider", *upd.SecondProvider)
	}
	if upd.SecondModel != nil {
		add("second_model", *upd.SecondModel)
	}

	add("updated_at", s.nextTimestamp())
	args = append(args, id)

	res, err := s.db.Exec(
		"UPDATE conversations SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// Conversation loads one conversation by ID.
func (s *Store) Conversation(id string) (model.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, title, provider, model, is_dual_mode, second_provider,
		        second_model, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}

// DeleteConversation removes a conversation and all of its messages.
func (s *Store) DeleteConversation(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Explicit cascade in addition to the FK so behavior does not depend
	// on the foreign_keys pragma surviving a reconnect.
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.log.Debug("deleted conversation", "id", id)
	return nil
}

// =============================================================================
// LISTING AND SEARCH
// =============================================================================

// Conversations returns metadata for all conversations, most recently
// updated first.
func (s *Store) Conversations() ([]model.ConversationMeta, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.title, c.provider, c.model, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		        COALESCE((SELECT m.content FROM messages m
		                  WHERE m.conversation_id = c.id AND m.role = 'user' AND m.thread_id = ''
		                  ORDER BY m.timestamp LIMIT 1), '')
		 FROM conversations c
		 ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var metas []model.ConversationMeta
	for rows.Next() {
		var m model.ConversationMeta
		var createdAt, updatedAt int64
		var preview string
		if err := rows.Scan(&m.ID, &m.Title, &m.Provider, &m.Model,
			&createdAt, &updatedAt, &m.MessageCount, &preview); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		m.CreatedAt = tsToTime(createdAt)
		m.UpdatedAt = tsToTime(updatedAt)
		m.Preview = util.TruncateRunes(preview, 80)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// SearchMessages returns metadata for conversations whose title or message
// content contains the query (case-insensitive). An empty query returns
// everything.
func (s *Store) SearchMessages(query string) ([]model.ConversationMeta, error) {
	all, err := s.Conversations()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	query = strings.ToLower(query)
	var results []model.ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
			continue
		}

		var n int
		err := s.db.QueryRow(
			`SELECT COUNT(*) FROM messages
			 WHERE conversation_id = ? AND LOWER(content) LIKE ?`,
			meta.ID, "%"+query+"%",
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to search messages: %w", err)
		}
		if n > 0 {
			results = append(results, meta)
		}
	}
	return results, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (model.Conversation, error) {
	var c model.Conversation
	var isDual int
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.Title, &c.Provider, &c.Model, &isDual,
		&c.SecondProvider, &c.SecondModel, &createdAt, &updatedAt)
	if err != nil {
		return model.Conversation{}, err
	}
	c.IsDualMode = isDual != 0
	c.CreatedAt = tsToTime(createdAt)
	c.UpdatedAt = tsToTime(updatedAt)
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newConversationID() string {
	return model.NewConversationID()
}

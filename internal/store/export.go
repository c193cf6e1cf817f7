// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// SNAPSHOT TYPE
// =============================================================================

// snapshotVersion is bumped when the snapshot layout changes.
const snapshotVersion = 1

// Snapshot is a full backup of the store: all conversations, all messages,
// and all settings. API keys stay encrypted; exporting never leaks
// plaintext secrets.
type Snapshot struct {
	Version       int                  `json:"version"`
	ExportedAt    time.Time            `json:"exported_at"`
	Conversations []model.Conversation `json:"conversations"`
	Messages      []model.Message      `json:"messages"`
	Settings      []model.ChatSettings `json:"settings"`
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportAll returns a snapshot of the entire store.
func (s *Store) ExportAll() (Snapshot, error) {
	snap := Snapshot{
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
	}

	convRows, err := s.db.Query(
		`SELECT id, title, provider, model, is_dual_mode, second_provider,
		        second_model, created_at, updated_at
		 FROM conversations ORDER BY created_at, id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to export conversations: %w", err)
	}
	defer convRows.Close()
	for convRows.Next() {
		c, err := scanConversation(convRows)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to scan conversation: %w", err)
		}
		snap.Conversations = append(snap.Conversations, c)
	}
	if err := convRows.Err(); err != nil {
		return Snapshot{}, err
	}

	msgRows, err := s.db.Query(selectMessage + " ORDER BY timestamp, id")
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to export messages: %w", err)
	}
	defer msgRows.Close()
	snap.Messages, err = scanMessages(msgRows)
	if err != nil {
		return Snapshot{}, err
	}

	snap.Settings, err = s.AllSettings()
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Import replaces the entire store contents with the snapshot, atomically:
// readers never observe a partial mix of old and new data.
// Import(ExportAll()) on identical contents is a no-op.
func (s *Store) Import(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"messages", "conversations", "settings"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	var maxTS int64
	for _, c := range snap.Conversations {
		_, err := tx.Exec(
			`INSERT INTO conversations (id, title, provider, model, is_dual_mode,
			                            second_provider, second_model, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Title, c.Provider, c.Model, boolToInt(c.IsDualMode),
			c.SecondProvider, c.SecondModel,
			c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to import conversation %s: %w", c.ID, err)
		}
		if ts := c.UpdatedAt.UnixNano(); ts > maxTS {
			maxTS = ts
		}
	}

	for _, m := range snap.Messages {
		_, err := tx.Exec(
			`INSERT INTO messages (id, conversation_id, role, content, timestamp,
			                       thread_id, parent_message_id, provider, model, tokens)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, string(m.Role), m.Content, m.Timestamp.UnixNano(),
			m.ThreadID, m.ParentMessageID, m.Provider, m.Model, m.Tokens,
		)
		if err != nil {
			return fmt.Errorf("failed to import message %s: %w", m.ID, err)
		}
		if ts := m.Timestamp.UnixNano(); ts > maxTS {
			maxTS = ts
		}
	}

	for _, cs := range snap.Settings {
		_, err := tx.Exec(
			`INSERT INTO settings (provider, api_key, model, temperature, max_tokens, system_prompt)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cs.Provider, cs.APIKey, cs.Model, cs.Temperature, cs.MaxTokens, cs.SystemPrompt,
		)
		if err != nil {
			return fmt.Errorf("failed to import settings for %s: %w", cs.Provider, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	// New messages must keep sorting after everything imported.
	s.bumpTimestamp(maxTS)

	s.log.Debug("imported snapshot",
		"conversations", len(snap.Conversations),
		"messages", len(snap.Messages),
		"settings", len(snap.Settings))
	return nil
}

// =============================================================================
// SNAPSHOT FILES
// =============================================================================

// WriteSnapshotFile exports the store to a JSON file, written atomically.
func (s *Store) WriteSnapshotFile(path string) error {
	snap, err := s.ExportAll()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return util.AtomicWriteFile(path, data, 0644)
}

// ReadSnapshotFile loads a snapshot from a JSON file and imports it.
func (s *Store) ReadSnapshotFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return s.Import(snap)
}

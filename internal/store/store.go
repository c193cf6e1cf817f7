// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the local persistence layer for conversations,
// messages, and per-provider chat settings.
//
// The store is the single source of truth: all mutation flows through it,
// and it alone assigns message IDs and timestamps. Messages are kept in one
// flat table with thread_id/parent_message_id edges; the thread package
// reconstructs the tree view on read.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a referenced conversation, message, or
	// settings row does not exist. References to missing IDs fail rather
	// than silently creating or no-op'ing a write.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite-backed local store.
type Store struct {
	db  *sql.DB
	log *log.Logger

	// tsMu guards monotonic timestamp assignment. Timestamps are assigned
	// by the store, never client-supplied, so clock skew cannot reorder a
	// thread.
	tsMu   sync.Mutex
	lastTS int64
}

// Open opens (or creates) the store at the given file path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: the store serializes writes and modernc/sqlite
	// does not support concurrent writers on one file.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log.Default().WithPrefix("store")}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// init applies pragmas and creates the schema.
func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL DEFAULT '',
		provider        TEXT NOT NULL,
		model           TEXT NOT NULL,
		is_dual_mode    INTEGER NOT NULL DEFAULT 0,
		second_provider TEXT NOT NULL DEFAULT '',
		second_model    TEXT NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id                TEXT PRIMARY KEY,
		conversation_id   TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role              TEXT NOT NULL,
		content           TEXT NOT NULL,
		timestamp         INTEGER NOT NULL,
		thread_id         TEXT NOT NULL DEFAULT '',
		parent_message_id TEXT NOT NULL DEFAULT '',
		provider          TEXT NOT NULL DEFAULT '',
		model             TEXT NOT NULL DEFAULT '',
		tokens            INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_thread
		ON messages(conversation_id, thread_id, timestamp);

	CREATE TABLE IF NOT EXISTS settings (
		provider      TEXT PRIMARY KEY,
		api_key       TEXT NOT NULL DEFAULT '',
		model         TEXT NOT NULL DEFAULT '',
		temperature   REAL NOT NULL DEFAULT 0,
		max_tokens    INTEGER NOT NULL DEFAULT 0,
		system_prompt TEXT NOT NULL DEFAULT ''
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Resume monotonic timestamps past anything already persisted.
	var maxTS sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(timestamp) FROM messages").Scan(&maxTS); err != nil {
		return fmt.Errorf("failed to read max timestamp: %w", err)
	}
	if maxTS.Valid {
		s.lastTS = maxTS.Int64
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

// nextTimestamp returns a strictly increasing timestamp in nanoseconds.
func (s *Store) nextTimestamp() int64 {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()

	ns := time.Now().UTC().UnixNano()
	if ns <= s.lastTS {
		ns = s.lastTS + 1
	}
	s.lastTS = ns
	return ns
}

// bumpTimestamp advances lastTS to at least ts, used after imports so new
// messages keep sorting after imported ones.
func (s *Store) bumpTimestamp(ts int64) {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	if ts > s.lastTS {
		s.lastTS = ts
	}
}

// tsToTime converts a stored nanosecond timestamp to time.Time.
func tsToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

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
// SETTINGS
// =============================================================================

// SaveSettings creates or overwrites the settings row for a provider. The
// API key must already be ciphertext (or empty); the store never sees
// plaintext secrets.
func (s *Store) SaveSettings(settings model.ChatSettings) error {
	if settings.Provider == "" {
		return errors.New("settings provider must not be empty")
	}

	_, err := s.db.Exec(
		`INSERT INTO settings (provider, api_key, model, temperature, max_tokens, system_prompt)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider) DO UPDATE SET
		   api_key = excluded.api_key,
		   model = excluded.model,
		   temperature = excluded.temperature,
		   max_tokens = excluded.max_tokens,
		   system_prompt = excluded.system_prompt`,
		settings.Provider, settings.APIKey, settings.Model,
		settings.Temperature, settings.MaxTokens, settings.SystemPrompt,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Settings loads the settings row for one provider.
func (s *Store) Settings(provider string) (model.ChatSettings, error) {
	row := s.db.QueryRow(
		`SELECT provider, api_key, model, temperature, max_tokens, system_prompt
		 FROM settings WHERE provider = ?`, provider)

	var cs model.ChatSettings
	err := row.Scan(&cs.Provider, &cs.APIKey, &cs.Model,
		&cs.Temperature, &cs.MaxTokens, &cs.SystemPrompt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ChatSettings{}, fmt.Errorf("settings for %s: %w", provider, ErrNotFound)
	}
	if err != nil {
		return model.ChatSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return cs, nil
}

// AllSettings returns every settings row, ordered by provider.
func (s *Store) AllSettings() ([]model.ChatSettings, error) {
	rows, err := s.db.Query(
		`SELECT provider, api_key, model, temperature, max_tokens, system_prompt
		 FROM settings ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var all []model.ChatSettings
	for rows.Next() {
		var cs model.ChatSettings
		if err := rows.Scan(&cs.Provider, &cs.APIKey, &cs.Model,
			&cs.Temperature, &cs.MaxTokens, &cs.SystemPrompt); err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		all = append(all, cs)
	}
	return all, rows.Err()
}

// DeleteSettings removes the settings row for a provider.
func (s *Store) DeleteSettings(provider string) error {
	res, err := s.db.Exec("DELETE FROM settings WHERE provider = ?", provider)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("settings for %s: %w", provider, ErrNotFound)
	}
	return nil
}

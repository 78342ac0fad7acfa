// This file implements the settings repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// settingsKey is the key of the single settings row.
const settingsKey = "app_settings"

// SettingsTable is the repository for the settings document.
type SettingsTable struct {
	engine *Engine
}

// Get returns the stored settings merged over the defaults. A missing or
// unreadable row yields the defaults.
func (t *SettingsTable) Get(ctx context.Context) (types.Settings, error) {
	var s types.Settings
	err := t.engine.query(func(db *sql.DB) error {
		var err error
		s, err = loadSettings(ctx, db)
		return err
	})
	if err != nil {
		return types.Settings{}, err
	}
	return s, nil
}

// Save merges patch over the current settings and replaces the stored row.
func (t *SettingsTable) Save(ctx context.Context, patch types.SettingsPatch) (types.Settings, error) {
	var saved types.Settings
	err := t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		cur, err := loadSettings(ctx, tx)
		if err != nil {
			return false, err
		}
		next := cur.Apply(patch)
		if err := next.Validate(); err != nil {
			return false, err
		}
		if err := replaceSettings(ctx, tx, next); err != nil {
			return false, err
		}
		saved = next
		return true, nil
	})
	if err != nil {
		return types.Settings{}, err
	}
	return saved, nil
}

// Replace stores s as the whole settings document.
func (t *SettingsTable) Replace(ctx context.Context, s types.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		return true, replaceSettings(ctx, tx, s)
	})
}

// Reset removes the stored row so Get returns the defaults.
func (t *SettingsTable) Reset(ctx context.Context) (types.Settings, error) {
	err := t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", settingsKey); err != nil {
			return false, fmt.Errorf("resetting settings: %w", err)
		}
		return true, nil
	})
	if err != nil {
		return types.Settings{}, err
	}
	return types.DefaultSettings(), nil
}

func loadSettings(ctx context.Context, q querier) (types.Settings, error) {
	s := types.DefaultSettings()
	var raw string
	err := q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return types.Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	// Unmarshal over the defaults so fields missing from older rows keep
	// their default values.
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return types.DefaultSettings(), nil
	}
	return s, nil
}

func replaceSettings(ctx context.Context, tx *sql.Tx, s types.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", settingsKey); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?)", settingsKey, string(data)); err != nil {
		return fmt.Errorf("storing settings: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopflow/internal/repository"
)

// SettingsRepo implements repository.SettingsRepository over email_system_settings
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo creates a new SettingsRepo
func NewSettingsRepo(db *DB) repository.SettingsRepository {
	return &SettingsRepo{db: db}
}

// Get returns the raw JSON stored under key, "" when it was never set
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	switch err := r.db.GetContext(ctx, &value, `SELECT value FROM email_system_settings WHERE key = ?`, key); {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set upserts key
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_system_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

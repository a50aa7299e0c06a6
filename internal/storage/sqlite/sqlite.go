// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// currentSlot is the key of the only credential row.
const currentSlot = "current"

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadCredential retrieves the stored credential, or nil when none is stored.
func (s *SQLiteStore) LoadCredential(ctx context.Context) (*models.Credential, error) {
	cred := &models.Credential{}
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, user_name, user_email, saved_at
		 FROM credentials WHERE slot = ?`,
		currentSlot,
	).Scan(&cred.Token, &cred.User.ID, &cred.User.Name, &cred.User.Email, &cred.SavedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	return cred, nil
}

// SaveCredential upserts the current credential.
func (s *SQLiteStore) SaveCredential(ctx context.Context, cred *models.Credential) error {
	if cred == nil || cred.Token == "" {
		return fmt.Errorf("credential token required")
	}
	savedAt := cred.SavedAt
	if savedAt == 0 {
		savedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (slot, token, user_id, user_name, user_email, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   token = excluded.token,
		   user_id = excluded.user_id,
		   user_name = excluded.user_name,
		   user_email = excluded.user_email,
		   saved_at = excluded.saved_at`,
		currentSlot, cred.Token, cred.User.ID, cred.User.Name, cred.User.Email, savedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// ClearCredential deletes the current credential.
func (s *SQLiteStore) ClearCredential(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE slot = ?", currentSlot); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// GetSetting retrieves a setting by key.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, true, nil
}

// PutSetting upserts a setting.
func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to put setting %q: %w", key, err)
	}
	return nil
}

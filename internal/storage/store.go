// Package storage provides abstractions for the client's durable data.
package storage

import (
	"context"

	"github.com/mmynk/splitroom/internal/models"
)

// CredentialStore persists the single current credential.
type CredentialStore interface {
	// LoadCredential returns the stored credential, or nil when none is stored.
	LoadCredential(ctx context.Context) (*models.Credential, error)

	// SaveCredential replaces the stored credential.
	// SavedAt is stamped on the stored copy when zero. cred is not modified.
	SaveCredential(ctx context.Context, cred *models.Credential) error

	// ClearCredential removes the stored credential. Clearing an empty
	// store is not an error.
	ClearCredential(ctx context.Context) error
}

// SettingsStore persists application settings as string key/value pairs.
type SettingsStore interface {
	// GetSetting returns the value for key and whether it was set.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// PutSetting sets key to value.
	PutSetting(ctx context.Context, key, value string) error
}

// Store defines the durable storage used by the session layer.
// This abstraction allows swapping storage backends without changing the
// session code.
type Store interface {
	CredentialStore
	SettingsStore

	// Close releases any resources held by the store.
	Close() error
}

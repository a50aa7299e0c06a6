package session

import (
	"context"
	"sync"
	"time"

	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/storage"
)

// Ensure MemoryBackend implements storage.Store
var _ storage.Store = (*MemoryBackend)(nil)

// MemoryBackend keeps the credential and settings in process memory.
// It serves as the session-scoped store and as a durable stand-in in tests.
type MemoryBackend struct {
	mu       sync.Mutex
	cred     *models.Credential
	settings map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{settings: make(map[string]string)}
}

// LoadCredential returns a copy of the stored credential, or nil.
func (m *MemoryBackend) LoadCredential(ctx context.Context) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	return &c, nil
}

// SaveCredential stores a copy of cred.
func (m *MemoryBackend) SaveCredential(ctx context.Context, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cred
	if c.SavedAt == 0 {
		c.SavedAt = time.Now().Unix()
	}
	m.cred = &c
	return nil
}

// ClearCredential drops the stored credential.
func (m *MemoryBackend) ClearCredential(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

// GetSetting returns the value for key.
func (m *MemoryBackend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

// PutSetting sets key to value.
func (m *MemoryBackend) PutSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

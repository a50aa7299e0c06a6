// Package session owns the client's credential and settings.
//
// The credential lives in two redundant stores: a session-scoped one that
// lasts for the process and a durable one that survives restarts. Reads
// check the session-scoped store first and fall back to the durable one;
// writes and clears hit both. A Store has an explicit lifecycle (Open,
// Close) and is injected into the components that need it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/mmynk/splitroom/internal/auth"
	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/storage"
)

var (
	ErrNoCredential = errors.New("not logged in")
	ErrExpired      = errors.New("session expired")
	ErrClosed       = errors.New("session store is closed")
)

const settingDarkMode = "dark_mode"

// Settings are the user-facing application preferences.
type Settings struct {
	DarkMode bool
}

// Store reads and writes the credential and settings.
type Store struct {
	mu      sync.Mutex
	open    bool
	session storage.CredentialStore
	durable storage.Store
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSessionBackend replaces the in-memory session-scoped backend.
func WithSessionBackend(b storage.CredentialStore) Option {
	return func(s *Store) { s.session = b }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store over the durable backend. The store must be opened
// before use.
func New(durable storage.Store, opts ...Option) *Store {
	s := &Store{
		session: NewMemoryBackend(),
		durable: durable,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemory creates an opened Store whose durable backend is also in
// memory. Useful for tests and one-shot commands.
func NewInMemory(opts ...Option) *Store {
	s := New(NewMemoryBackend(), opts...)
	s.open = true
	return s
}

// Open initialises the store.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.durable == nil {
		return fmt.Errorf("session: durable store required")
	}
	s.open = true
	s.logger.Debug("Session store opened")
	return nil
}

// Close tears the store down: the session-scoped credential is dropped and
// the durable backend is closed. The durable credential is kept.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	if err := s.session.ClearCredential(context.Background()); err != nil {
		s.logger.Warn("Failed to drop session credential", "error", err)
	}
	return s.durable.Close()
}

// Credential returns the current credential, preferring the session-scoped
// store. A credential found only in the durable store is copied back into
// the session-scoped one.
func (s *Store) Credential(ctx context.Context) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentialLocked(ctx)
}

func (s *Store) credentialLocked(ctx context.Context) (*models.Credential, error) {
	if !s.open {
		return nil, ErrClosed
	}

	cred, err := s.session.LoadCredential(ctx)
	if err != nil {
		s.logger.Warn("Session credential unreadable, falling back to durable store", "error", err)
	}
	if cred != nil {
		return cred, nil
	}

	cred, err = s.durable.LoadCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("load durable credential: %w", err)
	}
	if cred == nil {
		return nil, ErrNoCredential
	}

	if err := s.session.SaveCredential(ctx, cred); err != nil {
		s.logger.Warn("Failed to cache credential in session store", "error", err)
	}
	return cred, nil
}

// Token returns the bearer token. A JWT whose exp claim has passed is
// cleared from both stores and reported as ErrExpired.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.credentialLocked(ctx)
	if err != nil {
		return "", err
	}
	if auth.Expired(cred.Token, s.now()) {
		s.logger.Info("Stored token expired", "user_id", cred.User.ID)
		if err := s.clearLocked(ctx); err != nil {
			s.logger.Warn("Failed to clear expired credential", "error", err)
		}
		return "", ErrExpired
	}
	return cred.Token, nil
}

// User returns the authenticated user.
func (s *Store) User(ctx context.Context) (models.User, error) {
	cred, err := s.Credential(ctx)
	if err != nil {
		return models.User{}, err
	}
	return cred.User, nil
}

// Save writes the credential to both stores.
func (s *Store) Save(ctx context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	if cred == nil || cred.Token == "" {
		return fmt.Errorf("session: credential token required")
	}

	stamped := *cred
	if stamped.SavedAt == 0 {
		stamped.SavedAt = s.now().Unix()
	}
	cred = &stamped

	if err := s.durable.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("save durable credential: %w", err)
	}
	if err := s.session.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("save session credential: %w", err)
	}
	s.logger.Info("Credential saved", "user_id", cred.User.ID)
	return nil
}

// Clear removes the credential from both stores.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	errSession := s.session.ClearCredential(ctx)
	errDurable := s.durable.ClearCredential(ctx)
	if err := errors.Join(errSession, errDurable); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.logger.Info("Credential cleared")
	return nil
}

// Settings returns the stored preferences, with defaults for unset keys.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return Settings{}, ErrClosed
	}

	var settings Settings
	v, ok, err := s.durable.GetSetting(ctx, settingDarkMode)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if ok {
		dark, err := strconv.ParseBool(v)
		if err != nil {
			s.logger.Warn("Ignoring malformed setting", "key", settingDarkMode, "value", v)
		}
		settings.DarkMode = dark
	}
	return settings, nil
}

// SaveSettings persists the preferences.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	if err := s.durable.PutSetting(ctx, settingDarkMode, strconv.FormatBool(settings.DarkMode)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

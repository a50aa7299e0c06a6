package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/splitroom/internal/auth"
	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/storage/sqlite"
)

func openStore(t *testing.T, durable *MemoryBackend, sessionBackend *MemoryBackend) *Store {
	t.Helper()
	s := New(durable, WithSessionBackend(sessionBackend))
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestStore_ReadsSessionFirst(t *testing.T) {
	ctx := context.Background()
	durable, scoped := NewMemoryBackend(), NewMemoryBackend()
	durable.SaveCredential(ctx, &models.Credential{Token: "durable-token"})
	scoped.SaveCredential(ctx, &models.Credential{Token: "session-token"})

	s := openStore(t, durable, scoped)
	cred, err := s.Credential(ctx)
	if err != nil {
		t.Fatalf("Credential failed: %v", err)
	}
	if cred.Token != "session-token" {
		t.Errorf("Credential token = %q, want session-token", cred.Token)
	}
}

func TestStore_FallsBackToDurableAndBackfills(t *testing.T) {
	ctx := context.Background()
	durable, scoped := NewMemoryBackend(), NewMemoryBackend()
	durable.SaveCredential(ctx, &models.Credential{Token: "durable-token", User: models.User{ID: "u1"}})

	s := openStore(t, durable, scoped)
	user, err := s.User(ctx)
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("User ID = %q, want u1", user.ID)
	}

	cached, _ := scoped.LoadCredential(ctx)
	if cached == nil || cached.Token != "durable-token" {
		t.Errorf("expected durable credential copied into session store, got %+v", cached)
	}
}

func TestStore_SaveAndClearHitBothStores(t *testing.T) {
	ctx := context.Background()
	durable, scoped := NewMemoryBackend(), NewMemoryBackend()
	s := openStore(t, durable, scoped)

	if err := s.Save(ctx, &models.Credential{Token: "t1", User: models.User{ID: "u1"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for name, b := range map[string]*MemoryBackend{"durable": durable, "session": scoped} {
		if c, _ := b.LoadCredential(ctx); c == nil || c.Token != "t1" {
			t.Errorf("%s store missing credential after Save: %+v", name, c)
		}
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for name, b := range map[string]*MemoryBackend{"durable": durable, "session": scoped} {
		if c, _ := b.LoadCredential(ctx); c != nil {
			t.Errorf("%s store still holds credential after Clear", name)
		}
	}

	if _, err := s.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Token after Clear error = %v, want ErrNoCredential", err)
	}
}

func TestStore_ExpiredTokenIsCleared(t *testing.T) {
	ctx := context.Background()
	token, err := auth.NewJWTManager("secret", time.Hour).Generate(&models.User{ID: "u1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	later := time.Now().Add(2 * time.Hour)
	durable := NewMemoryBackend()
	s := New(durable, WithClock(func() time.Time { return later }))
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Save(ctx, &models.Credential{Token: token}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := s.Token(ctx); !errors.Is(err, ErrExpired) {
		t.Fatalf("Token error = %v, want ErrExpired", err)
	}
	if c, _ := durable.LoadCredential(ctx); c != nil {
		t.Error("expected expired credential removed from durable store")
	}
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend())

	if _, err := s.Credential(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Credential before Open error = %v, want ErrClosed", err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Save(ctx, &models.Credential{Token: "t"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Save(ctx, &models.Credential{Token: "t"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close error = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	settings, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.DarkMode {
		t.Error("expected dark mode off by default")
	}

	if err := s.SaveSettings(ctx, Settings{DarkMode: true}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	settings, err = s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if !settings.DarkMode {
		t.Error("expected dark mode on after save")
	}
}

func TestStore_DurableSQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	durable, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	first := New(durable)
	if err := first.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := first.Save(ctx, &models.Credential{Token: "persisted", User: models.User{ID: "u1", Name: "Alice"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := first.SaveSettings(ctx, Settings{DarkMode: true}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	durable, err = sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("sqlite.New (restart) failed: %v", err)
	}
	second := New(durable)
	if err := second.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer second.Close()

	token, err := second.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "persisted" {
		t.Errorf("Token = %q, want persisted", token)
	}
	settings, err := second.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if !settings.DarkMode {
		t.Error("expected dark mode to survive restart")
	}
}

func TestMemoryBackend_SaveCopiesCredential(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	cred := &models.Credential{Token: "t1"}

	if err := backend.SaveCredential(ctx, cred); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}
	if cred.SavedAt != 0 {
		t.Errorf("caller's SavedAt = %d, want untouched 0", cred.SavedAt)
	}
	stored, _ := backend.LoadCredential(ctx)
	if stored == nil || stored.SavedAt == 0 {
		t.Errorf("stored credential = %+v, want SavedAt stamped", stored)
	}
}

func TestStore_SaveStampsBothStoresOnce(t *testing.T) {
	ctx := context.Background()
	durable, scoped := NewMemoryBackend(), NewMemoryBackend()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(durable, WithSessionBackend(scoped), WithClock(func() time.Time { return at }))
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	cred := &models.Credential{Token: "t1"}
	if err := s.Save(ctx, cred); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if cred.SavedAt != 0 {
		t.Errorf("caller's SavedAt = %d, want untouched 0", cred.SavedAt)
	}
	for name, backend := range map[string]*MemoryBackend{"durable": durable, "session": scoped} {
		got, _ := backend.LoadCredential(ctx)
		if got == nil || got.SavedAt != at.Unix() {
			t.Errorf("%s credential = %+v, want SavedAt %d", name, got, at.Unix())
		}
	}
}

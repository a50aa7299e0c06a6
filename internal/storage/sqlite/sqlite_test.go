package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmynk/splitroom/internal/models"
)

func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "session.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestSQLiteStore_Credentials(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("LoadCredential on empty store", func(t *testing.T) {
		cred, err := store.LoadCredential(ctx)
		if err != nil {
			t.Fatalf("LoadCredential failed: %v", err)
		}
		if cred != nil {
			t.Errorf("Expected no credential, got %+v", cred)
		}
	})

	t.Run("SaveCredential stamps SavedAt and round-trips", func(t *testing.T) {
		cred := &models.Credential{
			Token: "token-1",
			User:  models.User{ID: "u1", Name: "Alice", Email: "alice@example.com"},
		}
		if err := store.SaveCredential(ctx, cred); err != nil {
			t.Fatalf("SaveCredential failed: %v", err)
		}
		if cred.SavedAt != 0 {
			t.Errorf("SaveCredential modified the caller's credential: SavedAt = %d", cred.SavedAt)
		}

		got, err := store.LoadCredential(ctx)
		if err != nil {
			t.Fatalf("LoadCredential failed: %v", err)
		}
		if got == nil || got.Token != "token-1" || got.User != cred.User {
			t.Errorf("LoadCredential = %+v, want %+v", got, cred)
		}
		if got.SavedAt == 0 {
			t.Error("Expected stored SavedAt to be set")
		}
	})

	t.Run("SaveCredential replaces the current slot", func(t *testing.T) {
		cred := &models.Credential{Token: "token-2", User: models.User{ID: "u2", Name: "Bob"}}
		if err := store.SaveCredential(ctx, cred); err != nil {
			t.Fatalf("SaveCredential failed: %v", err)
		}

		got, err := store.LoadCredential(ctx)
		if err != nil {
			t.Fatalf("LoadCredential failed: %v", err)
		}
		if got.Token != "token-2" || got.User.ID != "u2" {
			t.Errorf("Expected replaced credential, got %+v", got)
		}
	})

	t.Run("SaveCredential rejects empty token", func(t *testing.T) {
		if err := store.SaveCredential(ctx, &models.Credential{}); err == nil {
			t.Error("Expected error for empty token")
		}
	})

	t.Run("ClearCredential empties the store", func(t *testing.T) {
		if err := store.ClearCredential(ctx); err != nil {
			t.Fatalf("ClearCredential failed: %v", err)
		}
		got, err := store.LoadCredential(ctx)
		if err != nil {
			t.Fatalf("LoadCredential failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected no credential after clear, got %+v", got)
		}
		if err := store.ClearCredential(ctx); err != nil {
			t.Errorf("Clearing an empty store failed: %v", err)
		}
	})
}

func TestSQLiteStore_Settings(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetSetting(ctx, "theme"); err != nil || ok {
		t.Fatalf("GetSetting on empty store = ok %v, err %v", ok, err)
	}

	if err := store.PutSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("PutSetting failed: %v", err)
	}
	if err := store.PutSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("PutSetting overwrite failed: %v", err)
	}

	value, ok, err := store.GetSetting(ctx, "theme")
	if err != nil || !ok {
		t.Fatalf("GetSetting = ok %v, err %v", ok, err)
	}
	if value != "light" {
		t.Errorf("GetSetting = %q, want light", value)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	store, dbPath := newTestStore(t)
	ctx := context.Background()

	cred := &models.Credential{Token: "durable", User: models.User{ID: "u1"}}
	if err := store.SaveCredential(ctx, cred); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}
	store.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadCredential(ctx)
	if err != nil {
		t.Fatalf("LoadCredential failed: %v", err)
	}
	if got == nil || got.Token != "durable" {
		t.Errorf("Expected credential to survive reopen, got %+v", got)
	}
}

package apitest

import (
	"context"
	"strings"
	"sync"

	"github.com/mmynk/splitroom/internal/auth"
)

// accountStore is an in-memory auth.UserStorage.
type accountStore struct {
	mu      sync.Mutex
	byEmail map[string]*auth.Account
}

func newAccountStore() *accountStore {
	return &accountStore{byEmail: make(map[string]*auth.Account)}
}

func (s *accountStore) CreateAccount(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(account.Email)
	if _, ok := s.byEmail[key]; ok {
		return auth.ErrEmailExists
	}
	a := *account
	s.byEmail[key] = &a
	return nil
}

func (s *accountStore) GetAccountByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

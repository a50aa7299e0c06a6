// Package apitest runs an in-memory implementation of the REST and realtime
// contract for tests. It is not a server for production use.
package apitest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/websocket"

	"github.com/mmynk/splitroom/internal/auth"
	"github.com/mmynk/splitroom/internal/models"
)

const tokenSecret = "apitest-secret"

type failure struct {
	status  int
	message string
}

// Server is the contract fake.
type Server struct {
	// URL is the REST base URL.
	URL string
	// WSURL is the realtime endpoint.
	WSURL string

	http     *httptest.Server
	logger   *slog.Logger
	jwt      *auth.JWTManager
	authn    auth.Authenticator
	accounts *accountStore
	hub      *hub

	mu             sync.Mutex
	groups         map[string]*models.Group
	order          []string
	tokens         map[string]bool
	failures       map[string]failure
	memberFailures map[string]failure
	calls          map[string]int
}

// New starts a fake that is shut down when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	accounts := newAccountStore()
	s := &Server{
		logger:         slog.Default().With("component", "apitest"),
		jwt:            auth.NewJWTManager(tokenSecret, time.Hour),
		authn:          auth.NewPasswordAuthenticator(accounts, bcrypt.MinCost),
		accounts:       accounts,
		groups:         make(map[string]*models.Group),
		tokens:         make(map[string]bool),
		failures:       make(map[string]failure),
		memberFailures: make(map[string]failure),
		calls:          make(map[string]int),
	}
	s.hub = newHub(s)

	mux := http.NewServeMux()
	s.route(mux, "POST /api/auth/login", false, s.login)
	s.route(mux, "POST /api/auth/signup", false, s.signup)
	s.route(mux, "GET /api/groups", true, s.listGroups)
	s.route(mux, "POST /api/groups", true, s.createGroup)
	s.route(mux, "GET /api/groups/{id}", true, s.getGroup)
	s.route(mux, "DELETE /api/groups/{id}", true, s.deleteGroup)
	s.route(mux, "POST /api/groups/{id}/members", true, s.addMember)
	s.route(mux, "DELETE /api/groups/{id}/members/{email}", true, s.removeMember)
	s.route(mux, "DELETE /api/groups/{id}/invites/{email}", true, s.cancelInvite)
	s.route(mux, "POST /api/expenses/{groupId}", true, s.addExpense)
	mux.Handle("/ws", websocket.Server{
		Handshake: s.handshake,
		Handler:   s.hub.serve,
	})

	s.http = httptest.NewServer(mux)
	s.URL = s.http.URL
	s.WSURL = "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	t.Cleanup(s.Close)
	return s
}

// Close drops realtime connections and stops the server.
func (s *Server) Close() {
	s.hub.dropAll()
	s.http.Close()
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, user models.User)

func (s *Server) route(mux *http.ServeMux, pattern string, authenticated bool, h handlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		f, failing := s.failures[pattern]
		s.mu.Unlock()

		if failing {
			writeError(w, f.status, f.message)
			return
		}

		var user models.User
		if authenticated {
			var err error
			user, err = s.authorize(r.Header.Get("Authorization"))
			if err != nil {
				s.logger.Info("Rejected request", "pattern", pattern, "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
		}
		h(w, r, user)
	})
}

// authorize resolves a bearer header to the user it was issued for.
func (s *Server) authorize(header string) (models.User, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return models.User{}, auth.ErrMissingToken
	}

	s.mu.Lock()
	issued := s.tokens[token]
	s.mu.Unlock()
	if !issued {
		return models.User{}, auth.ErrInvalidToken
	}

	claims, err := s.jwt.Validate(token)
	if err != nil {
		return models.User{}, err
	}
	account, err := s.accounts.GetAccountByEmail(context.Background(), claims.Email)
	if err != nil || account == nil {
		return models.User{}, auth.ErrInvalidToken
	}
	return account.User, nil
}

func (s *Server) handshake(config *websocket.Config, r *http.Request) error {
	if _, err := s.authorize(r.Header.Get("Authorization")); err != nil {
		return err
	}
	return nil
}

// Register creates an account directly.
func (s *Server) Register(t testing.TB, name, email, password string) models.User {
	t.Helper()
	user, err := s.authn.Register(context.Background(), email, name, password)
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return *user
}

// Token issues a valid bearer token for user.
func (s *Server) Token(t testing.TB, user models.User) string {
	t.Helper()
	token, err := s.issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (s *Server) issue(user models.User) (string, error) {
	token, err := s.jwt.Generate(&user)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[token] = true
	s.mu.Unlock()
	return token, nil
}

// RevokeTokens invalidates every issued token, so the next authenticated
// call gets a 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// Fail makes every request to pattern (e.g. "GET /api/groups/{id}") fail
// with status and message. An empty message sends no error body.
func (s *Server) Fail(pattern string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = failure{status: status, message: message}
}

// FailMember makes adding email to any group fail.
func (s *Server) FailMember(email string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberFailures[strings.ToLower(email)] = failure{status: status, message: message}
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
	s.memberFailures = make(map[string]failure)
}

// Calls returns how many requests matched pattern.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// SeedGroup creates a group owned by owner with the given extra members.
func (s *Server) SeedGroup(owner models.User, name string, members ...models.User) *models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.newGroupLocked(owner, name)
	for _, m := range members {
		g.Members = append(g.Members, memberOf(m))
	}
	return g.Clone()
}

// SeedExpense appends an expense without broadcasting it.
func (s *Server) SeedExpense(groupID string, e models.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		g.Expenses = append(g.Expenses, e.Clone())
	}
}

// Group returns a copy of the stored group, or nil.
func (s *Server) Group(groupID string) *models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[groupID].Clone()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("apitest: encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"message": message})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

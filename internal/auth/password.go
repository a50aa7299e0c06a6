package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitroom/internal/models"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	if !strings.Contains(domain, ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword checks the password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Account is a user together with its password hash.
type Account struct {
	models.User
	PasswordHash string
}

// UserStorage defines the interface for account persistence operations.
// GetAccountByEmail returns nil, nil when no account matches.
type UserStorage interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

// NewPasswordAuthenticator creates a new password-based authenticator.
// A cost of zero selects bcrypt.DefaultCost.
func NewPasswordAuthenticator(storage UserStorage, cost int) *PasswordAuthenticator {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordAuthenticator{
		storage: storage,
		cost:    cost,
	}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	return ValidatePassword(credential)
}

// Register creates a new account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, name, credential string) (*models.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	existing, err := a.storage.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &Account{
		User: models.User{
			ID:    uuid.New().String(),
			Name:  name,
			Email: email,
		},
		PasswordHash: string(hashed),
	}
	if err := a.storage.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	user := account.User
	return &user, nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	account, err := a.storage.GetAccountByEmail(ctx, email)
	if err != nil || account == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := account.User
	return &user, nil
}

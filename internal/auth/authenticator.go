package auth

import (
	"context"

	"github.com/mmynk/splitroom/internal/models"
)

// Authenticator defines the interface for account authentication.
// The contract fake in apitest uses the password implementation; a real
// deployment authenticates on the server side of the REST contract.
type Authenticator interface {
	// Register creates a new account with the given email and credential.
	Register(ctx context.Context, email, name, credential string) (*models.User, error)

	// Authenticate verifies the credential and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

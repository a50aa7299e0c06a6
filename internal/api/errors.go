package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/splitroom/internal/session"
)

// User-facing messages.
const (
	DefaultErrorMessage       = "Something went wrong. Please try again."
	SessionExpiredMessage     = "Session expired. Please log in again."
	InvalidCredentialsMessage = "Invalid email or password."
	NetworkErrorMessage       = "Network error. Please check your connection and try again."
	LoginRequiredMessage      = "Please log in to continue."
	requestCancelledMessage   = "Request cancelled."
)

var (
	// ErrUnauthorized means the credential was missing, invalid or expired.
	// The stored credential has already been cleared when it is returned.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials means login was refused.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetwork means the request never produced an HTTP response.
	ErrNetwork = errors.New("network failure")
)

// Error is a failed API call. Message is safe to show to the user.
type Error struct {
	Operation string
	Status    int
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError is returned before a request is sent when its input is
// incomplete or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UserMessage renders err as the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, session.ErrExpired):
		return SessionExpiredMessage
	case errors.Is(err, session.ErrNoCredential):
		return LoginRequiredMessage
	case errors.Is(err, context.Canceled):
		return requestCancelledMessage
	default:
		return DefaultErrorMessage
	}
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mmynk/splitroom/internal/auth"
	"github.com/mmynk/splitroom/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates with email and password and stores the credential.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Credential, error) {
	if err := firstError(validEmail("email", email), required("password", password)); err != nil {
		return nil, err
	}

	return c.authenticate(ctx, request{
		op:        "login",
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      loginRequest{Email: email, Password: password},
		anonymous: true,
	})
}

// Signup registers a new account and stores the credential.
func (c *Client) Signup(ctx context.Context, name, email, password string) (*models.Credential, error) {
	if err := firstError(required("name", name), validEmail("email", email), required("password", password)); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters.", auth.MinPasswordLength),
		}
	}

	return c.authenticate(ctx, request{
		op:        "signup",
		method:    http.MethodPost,
		path:      "/api/auth/signup",
		body:      signupRequest{Name: name, Email: email, Password: password},
		anonymous: true,
	})
}

func (c *Client) authenticate(ctx context.Context, r request) (*models.Credential, error) {
	var resp authResponse
	if _, err := c.do(ctx, r, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &Error{Operation: r.op, Status: http.StatusOK, Message: DefaultErrorMessage, Err: errors.New("response carried no token")}
	}

	cred := &models.Credential{Token: resp.Token, User: resp.User}
	if err := c.session.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	c.logger.Info("Logged in", "user_id", resp.User.ID)
	return cred, nil
}

// Logout clears the stored credential.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.session.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

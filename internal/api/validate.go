package api

import (
	"strings"

	"github.com/mmynk/splitroom/internal/auth"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "Please fill in the " + field + "."}
	}
	return nil
}

func validEmail(field, email string) error {
	if err := required(field, email); err != nil {
		return err
	}
	if err := auth.ValidateEmail(email); err != nil {
		return &ValidationError{Field: field, Message: "Please enter a valid email address: " + email}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

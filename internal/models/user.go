package models

// User represents the authenticated account.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Email is the user's email address (unique).
	// Used for login and as the invitation key.
	Email string `json:"email"`
}

package models

// Credential is the bearer token and user record kept after a successful
// login or signup.
type Credential struct {
	// Token is the bearer token sent on every authenticated request.
	Token string `json:"token"`

	// User is the account the token belongs to.
	User User `json:"user"`

	// SavedAt is the Unix timestamp when the credential was stored.
	SavedAt int64 `json:"savedAt,omitempty"`
}

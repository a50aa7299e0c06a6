package models

import "time"

// ChatMessage is one entry of a group's chat stream.
// Insertion order is chronological order; no deduplication is applied
// beyond what the transport provides.
type ChatMessage struct {
	// User is the sender's display name.
	User string `json:"user"`

	// UserID is the sender's user ID.
	UserID string `json:"userId"`

	// Message is the text body.
	Message string `json:"message"`

	// Time is the client-generated timestamp (ISO 8601 on the wire).
	Time time.Time `json:"time"`
}

// Package uuidx generates the time-ordered identifiers used for runs, events
// and subscriptions.
package uuidx

import "github.com/google/uuid"

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new version 7 UUID and returns its string form.
func NewString() string {
	return New().String()
}

// String renders id, using the empty string for uuid.Nil so run-independent
// values don't print as a run of zeroes.
func String(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// Parse is the inverse of String: the empty string yields uuid.Nil.
func Parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

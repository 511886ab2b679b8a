package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSession indicates that the session token cannot be verified.
	ErrInvalidSession = errors.New("invalid session")
	// ErrInvalidUser indicates that the session is not related to the given account.
	ErrInvalidUser = errors.New("incorrect session user")
	// ErrExpiredSession indicates that the session has expired.
	ErrExpiredSession = errors.New("expired session")
	// ErrSessionNotFound indicates that the session is not found or was revoked.
	ErrSessionNotFound = errors.New("session not found")
)

// Session is the explicit caller context created at login.
// Every ledger operation receives it instead of reading shared state.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid checks that the session identifies an account and has not expired at now.
func (s Session) Valid(now time.Time) error {
	if s.Email == "" {
		return ErrInvalidSession
	}

	if now.After(s.ExpiresAt) {
		return ErrExpiredSession
	}

	return nil
}

// Package tokenpkg provides session token creation and verification.
package tokenpkg

import "time"

// Maker is an interface for managing tokens.
type Maker interface {
	// CreateToken creates a new token for a specific email and duration.
	CreateToken(email string, duration time.Duration) (string, *Payload, error)

	// VerifyToken checks if the token is valid or not.
	VerifyToken(token string) (*Payload, error)
}

// New returns the maker for the given token type: "jwt" or "paseto" (default).
func New(tokenType, key string) (Maker, error) {
	if tokenType == "jwt" {
		return NewJWTMaker(key)
	}

	return NewPasetoMaker(key)
}

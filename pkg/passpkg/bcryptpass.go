// Package passpkg provides password hashing.
package passpkg

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash returns the bcrypt hash of the password with the default cost.
func Hash(password string) (string, error) {
	return Bcrypt{}.Hash(password)
}

// Check checks if the provided password is correct or not.
func Check(password, hashedPassword string) error {
	return Bcrypt{}.Check(password, hashedPassword)
}

// Bcrypt hashes passwords with bcrypt. Zero Cost means bcrypt.DefaultCost.
type Bcrypt struct {
	Cost int
}

// Hash returns the salted bcrypt hash of the password.
func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedPassword), nil
}

// Check compares the password with its bcrypt hash.
func (b Bcrypt) Check(password, hashedPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

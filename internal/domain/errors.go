package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the base of all input validation errors.
// Use errors.Is(err, ErrValidation) to detect any of them.
var ErrValidation = errors.New("validation failed")

var (
	// ErrInvalidAmount indicates a non-positive or out of range amount.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	// ErrSelfTransfer indicates that the source and destination accounts are the same.
	ErrSelfTransfer = fmt.Errorf("%w: cannot transfer to the same account", ErrValidation)
	// ErrInvalidInput indicates malformed registration or query input.
	ErrInvalidInput = fmt.Errorf("%w: invalid input", ErrValidation)
)

var (
	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyExists indicates that the account with the given email already exists.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrRecipientNotFound indicates that the transfer destination is not found.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPersistence indicates that the ledger state could not be written durably.
	// The operation that returned it has been rolled back.
	ErrPersistence = errors.New("persistence failed")
	// ErrCorruptAccount indicates stored account state that breaks the balance rules.
	ErrCorruptAccount = errors.New("corrupt account")
)

// Outcome maps an operation error to a low cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_funds"
	case errors.Is(err, ErrRecipientNotFound), errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}

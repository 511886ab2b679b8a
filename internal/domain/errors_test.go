package domain

import (
	"errors"
	"testing"
)

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrInvalidAmount, ErrSelfTransfer, ErrInvalidInput} {
		if !errors.Is(err, ErrValidation) {
			t.Errorf("errors.Is(%v, ErrValidation) = false, want true", err)
		}
	}

	for _, err := range []error{ErrInsufficientBalance, ErrRecipientNotFound, ErrInvalidCredentials, ErrPersistence} {
		if errors.Is(err, ErrValidation) {
			t.Errorf("errors.Is(%v, ErrValidation) = true, want false", err)
		}
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	testCases := map[error]string{
		nil:                    "ok",
		ErrInvalidAmount:       "invalid",
		ErrSelfTransfer:        "invalid",
		ErrInsufficientBalance: "insufficient_funds",
		ErrRecipientNotFound:   "not_found",
		ErrPersistence:         "persistence_error",
		errors.New("boom"):     "error",
	}

	for err, want := range testCases {
		if got := Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}

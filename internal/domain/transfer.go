package domain

import "github.com/google/uuid"

// TransferResult is the result of a committed transfer.
type TransferResult struct {
	ID          uuid.UUID   `json:"id"`
	FromEmail   string      `json:"from_email"`
	ToEmail     string      `json:"to_email"`
	Amount      int64       `json:"amount"`
	FromBalance int64       `json:"from_balance"`
	ToBalance   int64       `json:"to_balance"`
	FromEntry   Transaction `json:"from_entry"`
	ToEntry     Transaction `json:"to_entry"`
}

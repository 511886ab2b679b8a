package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction holds a single signed balance change of an account.
type Transaction struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Counterparty string    `json:"counterparty,omitempty"` // empty for deposits and withdrawals
	Amount       int64     `json:"amount"`                 // positive credit, negative debit
	Description  string    `json:"description"`
	TransferID   uuid.UUID `json:"transfer_id"` // uuid.Nil unless the transaction is a transfer leg
}

// OwnedTransaction is a transaction together with the email of its account.
type OwnedTransaction struct {
	Owner string `json:"owner"`
	Transaction
}

// Newer reports whether a sorts before b in a most recent first listing.
// Equal timestamps fall back to the insertion sequence.
func Newer(a, b Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}

	return a.Seq > b.Seq
}

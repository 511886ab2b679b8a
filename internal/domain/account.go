// Package domain provides defenitions of all entities.
package domain

import (
	"fmt"
	"math"
	"time"
)

// Account holds a customer's credential, balance and transaction history.
//
// Balance is kept in minor currency units and always equals the sum of the
// transaction amounts.
type Account struct {
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	HashedPassword string        `json:"-"`
	Balance        int64         `json:"balance"`
	Transactions   []Transaction `json:"transactions"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Apply adds tx.Amount to the balance and appends tx to the history.
// The account is left untouched when the result would be negative or overflow.
func (a *Account) Apply(tx Transaction) error {
	if tx.Amount > 0 && a.Balance > math.MaxInt64-tx.Amount {
		return ErrInvalidAmount
	}

	if a.Balance+tx.Amount < 0 {
		return ErrInsufficientBalance
	}

	a.Balance += tx.Amount
	a.Transactions = append(a.Transactions, tx)

	return nil
}

// Check reports whether the balance is non-negative and equals the sum of the
// transaction amounts.
func (a *Account) Check() error {
	if a.Balance < 0 {
		return fmt.Errorf("%w: negative balance %d", ErrCorruptAccount, a.Balance)
	}

	var sum int64

	for _, tx := range a.Transactions {
		if (tx.Amount > 0 && sum > math.MaxInt64-tx.Amount) || (tx.Amount < 0 && sum < math.MinInt64-tx.Amount) {
			return fmt.Errorf("%w: history overflows at seq %d", ErrCorruptAccount, tx.Seq)
		}

		sum += tx.Amount
	}

	if sum != a.Balance {
		return fmt.Errorf("%w: balance %d, history sums to %d", ErrCorruptAccount, a.Balance, sum)
	}

	return nil
}

// Revert undoes the last Apply of tx.
func (a *Account) Revert(tx Transaction) {
	n := len(a.Transactions)
	if n == 0 || a.Transactions[n-1].Seq != tx.Seq {
		return
	}

	a.Balance -= tx.Amount
	a.Transactions = a.Transactions[:n-1]
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() Account {
	c := *a
	if a.Transactions != nil {
		c.Transactions = make([]Transaction, len(a.Transactions))
		copy(c.Transactions, a.Transactions)
	}

	return c
}

// Summary returns the account without credential and history.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		Name:             a.Name,
		Email:            a.Email,
		Balance:          a.Balance,
		TransactionCount: len(a.Transactions),
		CreatedAt:        a.CreatedAt,
	}
}

// AccountSummary is Account data excluding password and history.
type AccountSummary struct {
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Balance          int64     `json:"balance"`
	TransactionCount int       `json:"transaction_count"`
	CreatedAt        time.Time `json:"created_at"`
}

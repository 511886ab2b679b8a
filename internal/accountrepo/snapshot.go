package accountrepo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// SnapshotVersion is the version of the persisted snapshot layout.
const SnapshotVersion = 1

// Persister durably stores whole ledger snapshots.
//
// Save must be atomic: after a failed Save, Load returns the previous snapshot.
// Load returns an empty snapshot when nothing was saved yet.
//
//go:generate mockgen -source snapshot.go -destination snapshot_mock.go -package accountrepo
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Meta describes how and when a snapshot was written.
type Meta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the full persisted ledger state.
type Snapshot struct {
	Meta     Meta            `json:"_meta"`
	NextSeq  int64           `json:"next_seq"`
	Accounts []AccountRecord `json:"accounts"`
}

// AccountRecord is the persisted form of an account.
type AccountRecord struct {
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Password     string              `json:"password"`
	Balance      int64               `json:"balance"`
	CreatedAt    time.Time           `json:"created_at"`
	Transactions []TransactionRecord `json:"transactions"`
}

// TransactionRecord is the persisted form of a transaction.
type TransactionRecord struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Counterparty *string   `json:"counterparty"`
	Amount       int64     `json:"amount"`
	Description  string    `json:"description"`
	TransferID   string    `json:"transfer_id,omitempty"`
}

func newAccountRecord(a domain.Account) AccountRecord {
	r := AccountRecord{
		Name:         a.Name,
		Email:        a.Email,
		Password:     a.HashedPassword,
		Balance:      a.Balance,
		CreatedAt:    a.CreatedAt,
		Transactions: make([]TransactionRecord, 0, len(a.Transactions)),
	}

	for _, tx := range a.Transactions {
		tr := TransactionRecord{
			Seq:         tx.Seq,
			Timestamp:   tx.Timestamp,
			Amount:      tx.Amount,
			Description: tx.Description,
		}

		if tx.Counterparty != "" {
			counterparty := tx.Counterparty
			tr.Counterparty = &counterparty
		}

		if tx.TransferID != uuid.Nil {
			tr.TransferID = tx.TransferID.String()
		}

		r.Transactions = append(r.Transactions, tr)
	}

	return r
}

func (r AccountRecord) toDomain() (domain.Account, error) {
	a := domain.Account{
		Name:           r.Name,
		Email:          r.Email,
		HashedPassword: r.Password,
		Balance:        r.Balance,
		CreatedAt:      r.CreatedAt,
	}

	if len(r.Transactions) > 0 {
		a.Transactions = make([]domain.Transaction, 0, len(r.Transactions))
	}

	for _, tr := range r.Transactions {
		tx := domain.Transaction{
			Seq:         tr.Seq,
			Timestamp:   tr.Timestamp,
			Amount:      tr.Amount,
			Description: tr.Description,
		}

		if tr.Counterparty != nil {
			tx.Counterparty = *tr.Counterparty
		}

		if tr.TransferID != "" {
			id, err := uuid.Parse(tr.TransferID)
			if err != nil {
				return a, err
			}

			tx.TransferID = id
		}

		a.Transactions = append(a.Transactions, tx)
	}

	return a, nil
}

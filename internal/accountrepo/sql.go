package accountrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/pkg/dbpkg"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS accounts (
    email      TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    password   TEXT NOT NULL,
    balance    BIGINT NOT NULL CONSTRAINT accounts_balance_check CHECK (balance >= 0),
    created_at BIGINT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS transactions (
    email        TEXT NOT NULL REFERENCES accounts (email) ON DELETE CASCADE,
    ordinal      INTEGER NOT NULL,
    seq          BIGINT NOT NULL,
    occurred_at  BIGINT NOT NULL,
    counterparty TEXT,
    amount       BIGINT NOT NULL,
    description  TEXT NOT NULL,
    transfer_id  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (email, ordinal)
)`, `
CREATE TABLE IF NOT EXISTS ledger_meta (
    id         INTEGER PRIMARY KEY,
    next_seq   BIGINT NOT NULL,
    written_at BIGINT NOT NULL
)`,
}

// SQLStore persists snapshots in a relational database.
//
// Save replaces all rows inside one database transaction, so a failed Save
// leaves the previous snapshot in place.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore returns a SQLStore on db and creates the schema if needed.
// driver is the database/sql driver name: "sqlite" or "postgres".
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) q(query string) string {
	return dbpkg.Rebind(s.driver, query)
}

const getMetaQuery = `SELECT next_seq FROM ledger_meta WHERE id = 1`

const listAccountsQuery = `
SELECT
	email, name, password, balance, created_at
FROM accounts
ORDER BY email
`

const listTransactionsQuery = `
SELECT
	email, seq, occurred_at, counterparty, amount, description, transfer_id
FROM transactions
ORDER BY email, ordinal
`

// Load reads the snapshot. An empty database is an empty snapshot.
func (s *SQLStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	err := s.db.QueryRowContext(ctx, getMetaQuery).Scan(&snap.NextSeq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return snap, err
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return snap, err
	}

	index := make(map[string]int, len(accounts))
	for i, a := range accounts {
		index[a.Email] = i
	}

	rows, err := s.db.QueryContext(ctx, listTransactionsQuery)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			email        string
			tr           TransactionRecord
			occurredAt   int64
			counterparty sql.NullString
		)

		if err := rows.Scan(&email, &tr.Seq, &occurredAt, &counterparty, &tr.Amount, &tr.Description, &tr.TransferID); err != nil {
			return snap, err
		}

		tr.Timestamp = fromUnixNano(occurredAt)

		if counterparty.Valid {
			c := counterparty.String
			tr.Counterparty = &c
		}

		i, ok := index[email]
		if !ok {
			return snap, fmt.Errorf("transaction %d of unknown account %s", tr.Seq, email)
		}

		accounts[i].Transactions = append(accounts[i].Transactions, tr)
	}

	if err := rows.Err(); err != nil {
		return snap, err
	}

	snap.Meta = Meta{Storage: s.driver, Version: SnapshotVersion}
	snap.Accounts = accounts

	return snap, nil
}

func (s *SQLStore) loadAccounts(ctx context.Context) ([]AccountRecord, error) {
	rows, err := s.db.QueryContext(ctx, listAccountsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []AccountRecord{}

	for rows.Next() {
		var (
			a         AccountRecord
			createdAt int64
		)

		if err := rows.Scan(&a.Email, &a.Name, &a.Password, &a.Balance, &createdAt); err != nil {
			return nil, err
		}

		a.CreatedAt = fromUnixNano(createdAt)
		a.Transactions = []TransactionRecord{}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

const (
	insertAccountQuery = `
INSERT INTO
    accounts (email, name, password, balance, created_at)
VALUES
    (?, ?, ?, ?, ?)
`
	insertTransactionQuery = `
INSERT INTO
    transactions (email, ordinal, seq, occurred_at, counterparty, amount, description, transfer_id)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?)
`
	insertMetaQuery = `
INSERT INTO
    ledger_meta (id, next_seq, written_at)
VALUES
    (1, ?, ?)
`
)

// Save replaces the stored snapshot within a single database transaction.
func (s *SQLStore) Save(ctx context.Context, snap Snapshot) error {
	l := zerolog.Ctx(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	if err := s.replace(ctx, tx, snap); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			l.Error().Err(err).Str("constraint", pqErr.Constraint).Str("code", string(pqErr.Code)).Send()
		}

		return err
	}

	return tx.Commit()
}

func (s *SQLStore) replace(ctx context.Context, db dbpkg.SQLInterface, snap Snapshot) error {
	for _, stmt := range []string{`DELETE FROM transactions`, `DELETE FROM accounts`, `DELETE FROM ledger_meta`} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insertAccount, err := db.PrepareContext(ctx, s.q(insertAccountQuery))
	if err != nil {
		return err
	}
	defer insertAccount.Close()

	insertTransaction, err := db.PrepareContext(ctx, s.q(insertTransactionQuery))
	if err != nil {
		return err
	}
	defer insertTransaction.Close()

	for _, a := range snap.Accounts {
		_, err := insertAccount.ExecContext(ctx, a.Email, a.Name, a.Password, a.Balance, unixNano(a.CreatedAt))
		if err != nil {
			return err
		}

		for i, tr := range a.Transactions {
			var counterparty sql.NullString
			if tr.Counterparty != nil {
				counterparty = sql.NullString{String: *tr.Counterparty, Valid: true}
			}

			_, err := insertTransaction.ExecContext(ctx,
				a.Email,
				i,
				tr.Seq,
				unixNano(tr.Timestamp),
				counterparty,
				tr.Amount,
				tr.Description,
				tr.TransferID,
			)
			if err != nil {
				return err
			}
		}
	}

	_, err = db.ExecContext(ctx, s.q(insertMetaQuery), snap.NextSeq, time.Now().UnixNano())

	return err
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}

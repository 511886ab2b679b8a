// Package ledgerservice manages deposits, withdrawals and balance checks.
package ledgerservice

import (
	"context"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/eventpkg"
	"github.com/go-petr/pet-ledger/pkg/metricspkg"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by ledger service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	Get(ctx context.Context, email string) (*domain.Account, error)
	Lock(emails ...string) (unlock func())
	NextSeq() int64
	Save(ctx context.Context, accounts ...*domain.Account) error
	Balance(ctx context.Context, email string) (int64, error)
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo      Repo
	publisher eventpkg.Publisher
	metrics   *metricspkg.Metrics
}

// New returns ledger service struct to manage single account operations.
func New(lr Repo, p eventpkg.Publisher, m *metricspkg.Metrics) *Service {
	return &Service{
		repo:      lr,
		publisher: p,
		metrics:   m,
	}
}

// Deposit credits amount minor units to the session account and returns the new balance.
func (s *Service) Deposit(ctx context.Context, sess domain.Session, amount int64) (int64, error) {
	balance, err := s.apply(ctx, sess, amount, false)
	s.metrics.ObserveOperation("deposit", domain.Outcome(err))

	return balance, err
}

// Withdraw debits amount minor units from the session account and returns the new balance.
func (s *Service) Withdraw(ctx context.Context, sess domain.Session, amount int64) (int64, error) {
	balance, err := s.apply(ctx, sess, amount, true)
	s.metrics.ObserveOperation("withdraw", domain.Outcome(err))

	return balance, err
}

func (s *Service) apply(ctx context.Context, sess domain.Session, amount int64, debit bool) (int64, error) {
	l := zerolog.Ctx(ctx)

	if err := sess.Valid(time.Now()); err != nil {
		return 0, err
	}

	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	account, err := s.repo.Get(ctx, sess.Email)
	if err != nil {
		return 0, err
	}

	tx := domain.Transaction{
		Timestamp:   time.Now().UTC(),
		Amount:      amount,
		Description: "deposit",
	}

	if debit {
		tx.Amount = -amount
		tx.Description = "withdrawal"
	}

	unlock := s.repo.Lock(account.Email)

	tx.Seq = s.repo.NextSeq()

	if err := account.Apply(tx); err != nil {
		unlock()
		l.Info().Err(err).Int64("amount", tx.Amount).Send()

		return 0, err
	}

	if err := s.repo.Save(ctx, account); err != nil {
		account.Revert(tx)
		unlock()

		return 0, err
	}

	balance := account.Balance
	unlock()

	l.Info().Str("email", account.Email).Int64("seq", tx.Seq).Int64("amount", tx.Amount).Msg(tx.Description)

	eventpkg.PublishCompleted(ctx, s.publisher, completed(account.Email, balance, tx))

	return balance, nil
}

// Balance returns the committed balance of the session account.
func (s *Service) Balance(ctx context.Context, sess domain.Session) (int64, error) {
	if err := sess.Valid(time.Now()); err != nil {
		return 0, err
	}

	balance, err := s.repo.Balance(ctx, sess.Email)
	s.metrics.ObserveOperation("balance", domain.Outcome(err))

	return balance, err
}

// completed builds the event for tx committed on the account with email.
func completed(email string, balance int64, tx domain.Transaction) eventpkg.TransactionCompleted {
	return eventpkg.TransactionCompleted{
		Email:        email,
		Seq:          tx.Seq,
		Timestamp:    tx.Timestamp,
		Counterparty: tx.Counterparty,
		Amount:       tx.Amount,
		Balance:      balance,
		Description:  tx.Description,
		TransferID:   tx.TransferID,
	}
}

// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/eventpkg"
	"github.com/go-petr/pet-ledger/pkg/metricspkg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Repo interface {
	Get(ctx context.Context, email string) (*domain.Account, error)
	Lock(emails ...string) (unlock func())
	NextSeq() int64
	Save(ctx context.Context, accounts ...*domain.Account) error
}

// Service facilitates transfer service layer logic.
type Service struct {
	repo      Repo
	publisher eventpkg.Publisher
	metrics   *metricspkg.Metrics
}

// New return transfer service struct to manage transfer bussines logic.
func New(tr Repo, p eventpkg.Publisher, m *metricspkg.Metrics) *Service {
	return &Service{
		repo:      tr,
		publisher: p,
		metrics:   m,
	}
}

func (s *Service) validRequest(ctx context.Context, sess domain.Session, toEmail string, amount int64) (from, to *domain.Account, err error) {
	l := zerolog.Ctx(ctx)

	if err := sess.Valid(time.Now()); err != nil {
		return nil, nil, err
	}

	from, err = s.repo.Get(ctx, sess.Email)
	if err != nil {
		l.Error().Err(err).Str("email", sess.Email).Msg("session account not found")
		return nil, nil, err
	}

	to, err = s.repo.Get(ctx, toEmail)
	if err != nil {
		l.Info().Err(err).Str("to", toEmail).Send()
		return nil, nil, domain.ErrRecipientNotFound
	}

	if from == to {
		return nil, nil, domain.ErrSelfTransfer
	}

	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	return from, to, nil
}

// Transfer moves amount minor units from the session account to the account
// with toEmail. Both legs are committed by one snapshot write or not at all.
func (s *Service) Transfer(ctx context.Context, sess domain.Session, toEmail string, amount int64) (domain.TransferResult, error) {
	result, err := s.transfer(ctx, sess, toEmail, amount)
	s.metrics.ObserveOperation("transfer", domain.Outcome(err))

	return result, err
}

func (s *Service) transfer(ctx context.Context, sess domain.Session, toEmail string, amount int64) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.TransferResult

	from, to, err := s.validRequest(ctx, sess, toEmail, amount)
	if err != nil {
		return result, err
	}

	unlock := s.repo.Lock(from.Email, to.Email)

	if current, err := s.repo.Get(ctx, toEmail); err != nil || current != to {
		unlock()
		return result, domain.ErrRecipientNotFound
	}

	if from.Balance < amount {
		unlock()
		return result, domain.ErrInsufficientBalance
	}

	id := uuid.New()
	now := time.Now().UTC()

	debit := domain.Transaction{
		Seq:          s.repo.NextSeq(),
		Timestamp:    now,
		Counterparty: to.Email,
		Amount:       -amount,
		Description:  "transfer to " + to.Email,
		TransferID:   id,
	}

	credit := domain.Transaction{
		Seq:          s.repo.NextSeq(),
		Timestamp:    now,
		Counterparty: from.Email,
		Amount:       amount,
		Description:  "transfer from " + from.Email,
		TransferID:   id,
	}

	if err := from.Apply(debit); err != nil {
		unlock()
		return result, err
	}

	if err := to.Apply(credit); err != nil {
		from.Revert(debit)
		unlock()

		return result, err
	}

	if err := s.repo.Save(ctx, from, to); err != nil {
		to.Revert(credit)
		from.Revert(debit)
		unlock()

		return result, err
	}

	result = domain.TransferResult{
		ID:          id,
		FromEmail:   from.Email,
		ToEmail:     to.Email,
		Amount:      amount,
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
		FromEntry:   debit,
		ToEntry:     credit,
	}

	unlock()

	l.Info().
		Str("transfer_id", id.String()).
		Str("from", result.FromEmail).
		Str("to", result.ToEmail).
		Int64("amount", amount).
		Msg("transfer committed")

	eventpkg.PublishCompleted(ctx, s.publisher, completed(result.FromEmail, result.FromBalance, debit))
	eventpkg.PublishCompleted(ctx, s.publisher, completed(result.ToEmail, result.ToBalance, credit))

	return result, nil
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

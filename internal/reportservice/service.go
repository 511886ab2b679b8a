// Package reportservice provides administrative read only views of the ledger.
package reportservice

import (
	"context"
	"sort"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by report service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package reportservice
type Repo interface {
	Find(ctx context.Context, email string) (domain.Account, error)
	Snapshot(ctx context.Context) []domain.Account
}

// Service facilitates report service layer logic.
type Service struct {
	repo   Repo
	admins map[string]struct{}
}

// New returns report service struct. Accounts with adminEmails hold the admin capability.
func New(rr Repo, adminEmails []string) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e != "" {
			admins[e] = struct{}{}
		}
	}

	return &Service{
		repo:   rr,
		admins: admins,
	}
}

// IsAdmin reports whether the account with email may run reports.
func (s *Service) IsAdmin(email string) bool {
	_, ok := s.admins[email]
	return ok
}

// AllTransactions returns every committed transaction of every account, most recent first.
func (s *Service) AllTransactions(ctx context.Context) []domain.OwnedTransaction {
	accounts := s.repo.Snapshot(ctx)

	var n int
	for _, a := range accounts {
		n += len(a.Transactions)
	}

	result := make([]domain.OwnedTransaction, 0, n)

	for _, a := range accounts {
		for _, tx := range a.Transactions {
			result = append(result, domain.OwnedTransaction{Owner: a.Email, Transaction: tx})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return domain.Newer(result[i].Transaction, result[j].Transaction)
	})

	zerolog.Ctx(ctx).Debug().Int("transactions", len(result)).Msg("all transactions listed")

	return result
}

// TransactionsForUser returns the committed history of the account with email, most recent first.
func (s *Service) TransactionsForUser(ctx context.Context, email string) ([]domain.Transaction, error) {
	account, err := s.repo.Find(ctx, email)
	if err != nil {
		return nil, err
	}

	result := account.Transactions
	if result == nil {
		result = []domain.Transaction{}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return domain.Newer(result[i], result[j])
	})

	return result, nil
}

// AllCustomers returns summaries of all non admin accounts sorted by email.
func (s *Service) AllCustomers(ctx context.Context) []domain.AccountSummary {
	accounts := s.repo.Snapshot(ctx)

	result := make([]domain.AccountSummary, 0, len(accounts))

	for i := range accounts {
		if s.IsAdmin(accounts[i].Email) {
			continue
		}

		result = append(result, accounts[i].Summary())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Email < result[j].Email
	})

	return result
}

package reportservice

import (
	"context"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tx(seq int64, offset time.Duration, amount int64) domain.Transaction {
	return domain.Transaction{Seq: seq, Timestamp: base.Add(offset), Amount: amount, Description: "deposit"}
}

func fixture() []domain.Account {
	return []domain.Account{
		{
			Name:         "Admin",
			Email:        "admin@x.com",
			Transactions: []domain.Transaction{tx(1, 0, 5)},
			Balance:      5,
		},
		{
			Name:         "Alice",
			Email:        "alice@x.com",
			Transactions: []domain.Transaction{tx(2, time.Minute, 100), tx(4, 2*time.Minute, -40)},
			Balance:      60,
		},
		{
			Name:         "Bob",
			Email:        "bob@x.com",
			Transactions: []domain.Transaction{tx(3, time.Minute, 40), tx(5, 2*time.Minute, 40)},
			Balance:      80,
		},
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	s := New(nil, []string{"admin@x.com", ""})

	if !s.IsAdmin("admin@x.com") {
		t.Error(`IsAdmin("admin@x.com") = false, want true`)
	}

	for _, email := range []string{"", "Admin@x.com", "alice@x.com"} {
		if s.IsAdmin(email) {
			t.Errorf("IsAdmin(%q) = true, want false", email)
		}
	}
}

func TestAllTransactions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	repo.EXPECT().Snapshot(gomock.Any()).Times(1).Return(fixture())

	got := New(repo, []string{"admin@x.com"}).AllTransactions(context.Background())

	var gotOrder []int64
	for _, ot := range got {
		gotOrder = append(gotOrder, ot.Seq)
	}

	// Newest first; equal timestamps fall back to the later sequence.
	wantOrder := []int64{5, 4, 3, 2, 1}
	if diff := cmp.Diff(wantOrder, gotOrder); diff != "" {
		t.Errorf("AllTransactions() order returned unexpected diff: %s", diff)
	}

	if got[0].Owner != "bob@x.com" || got[4].Owner != "admin@x.com" {
		t.Errorf("AllTransactions() owners = %v, %v, want bob@x.com, admin@x.com", got[0].Owner, got[4].Owner)
	}
}

func TestAllTransactionsEmpty(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	repo.EXPECT().Snapshot(gomock.Any()).Times(1).Return(nil)

	got := New(repo, nil).AllTransactions(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("AllTransactions() = %#v, want empty non nil slice", got)
	}
}

func TestTransactionsForUser(t *testing.T) {
	t.Parallel()

	accounts := fixture()

	testCases := []struct {
		name       string
		email      string
		buildStubs func(repo *MockRepo)
		want       []domain.Transaction
		wantError  error
	}{
		{
			name:  "OK",
			email: "alice@x.com",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Find(gomock.Any(), "alice@x.com").Times(1).Return(accounts[1], nil)
			},
			want: []domain.Transaction{tx(4, 2*time.Minute, -40), tx(2, time.Minute, 100)},
		},
		{
			name:  "NoTransactions",
			email: "new@x.com",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Find(gomock.Any(), "new@x.com").Times(1).Return(domain.Account{Email: "new@x.com"}, nil)
			},
			want: []domain.Transaction{},
		},
		{
			name:  "ErrAccountNotFound",
			email: "ghost@x.com",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Find(gomock.Any(), "ghost@x.com").Times(1).Return(domain.Account{}, domain.ErrAccountNotFound)
			},
			wantError: domain.ErrAccountNotFound,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			got, err := New(repo, nil).TransactionsForUser(context.Background(), tc.email)
			if err != tc.wantError {
				t.Fatalf("TransactionsForUser(%v) error = %v, want %v", tc.email, err, tc.wantError)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("TransactionsForUser(%v) returned unexpected diff: %s", tc.email, diff)
			}
		})
	}
}

func TestAllCustomers(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := fixture()
	// Unsorted input.
	accounts[1], accounts[2] = accounts[2], accounts[1]

	repo := NewMockRepo(ctrl)
	repo.EXPECT().Snapshot(gomock.Any()).Times(1).Return(accounts)

	got := New(repo, []string{"admin@x.com"}).AllCustomers(context.Background())

	want := []domain.AccountSummary{
		{Name: "Alice", Email: "alice@x.com", Balance: 60, TransactionCount: 2},
		{Name: "Bob", Email: "bob@x.com", Balance: 80, TransactionCount: 2},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AllCustomers() returned unexpected diff: %s", diff)
	}
}

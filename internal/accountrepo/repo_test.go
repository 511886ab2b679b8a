package accountrepo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

func randomAccount() domain.Account {
	return domain.Account{
		Name:           randompkg.Owner(),
		Email:          randompkg.Email(),
		HashedPassword: randompkg.String(60),
		CreatedAt:      time.Now().UTC(),
	}
}

func randomDeposit(seq int64) domain.Transaction {
	return domain.Transaction{
		Seq:         seq,
		Timestamp:   time.Now().UTC(),
		Amount:      randompkg.Amount(1, 100_000),
		Description: "deposit",
	}
}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	repo, err := New(context.Background(), NewMemStore())
	require.NoError(t, err)

	return repo
}

func seedAccount(t *testing.T, repo *Repo, balance int64) *domain.Account {
	t.Helper()

	ctx := context.Background()

	a, err := repo.Create(ctx, randomAccount())
	require.NoError(t, err)

	if balance > 0 {
		unlock := repo.Lock(a.Email)
		defer unlock()

		err = a.Apply(domain.Transaction{
			Seq:         repo.NextSeq(),
			Timestamp:   time.Now().UTC(),
			Amount:      balance,
			Description: "deposit",
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, a))
	}

	return a
}

func TestCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	account := randomAccount()

	got, err := repo.Create(ctx, account)
	require.NoError(t, err)
	require.Equal(t, account.Email, got.Email)
	require.Zero(t, got.Balance)

	found, err := repo.Find(ctx, account.Email)
	require.NoError(t, err)

	if diff := cmp.Diff(account, found, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("repo.Find(%v) returned unexpected diff: %v", account.Email, diff)
	}

	// Duplicate keeps the first registration untouched.
	dup := account
	dup.Name = "someone else"

	_, err = repo.Create(ctx, dup)
	require.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	found, err = repo.Find(ctx, account.Email)
	require.NoError(t, err)
	require.Equal(t, account.Name, found.Name)
}

func TestCreateEmailIsCaseSensitive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	lower := randomAccount()
	lower.Email = "alice@x"
	upper := randomAccount()
	upper.Email = "Alice@x"

	_, err := repo.Create(ctx, lower)
	require.NoError(t, err)

	_, err = repo.Create(ctx, upper)
	require.NoError(t, err)

	require.Len(t, repo.Snapshot(ctx), 2)
}

func TestGetReturnsLiveHandle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	created := seedAccount(t, repo, 0)

	got1, err := repo.Get(ctx, created.Email)
	require.NoError(t, err)

	got2, err := repo.Get(ctx, created.Email)
	require.NoError(t, err)

	if got1 != got2 || got1 != created {
		t.Fatalf("repo.Get(%v) returned different handles", created.Email)
	}

	_, err = repo.Get(ctx, "nobody@x")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSaveCommitsOnlySavedAccounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	a := seedAccount(t, repo, 100)
	b := seedAccount(t, repo, 100)

	// b is changed in memory but never saved.
	unlockB := repo.Lock(b.Email)
	require.NoError(t, b.Apply(domain.Transaction{Seq: repo.NextSeq(), Amount: 50}))

	unlockA := repo.Lock(a.Email)
	require.NoError(t, a.Apply(domain.Transaction{Seq: repo.NextSeq(), Amount: 10}))
	require.NoError(t, repo.Save(ctx, a))
	unlockA()

	balance, err := repo.Balance(ctx, b.Email)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)

	balance, err = repo.Balance(ctx, a.Email)
	require.NoError(t, err)
	require.Equal(t, int64(110), balance)

	b.Revert(b.Transactions[len(b.Transactions)-1])
	unlockB()

	// Reload sees the same committed state.
	snap, err := repo.persister.Load(ctx)
	require.NoError(t, err)

	for _, rec := range snap.Accounts {
		switch rec.Email {
		case a.Email:
			require.Equal(t, int64(110), rec.Balance)
		case b.Email:
			require.Equal(t, int64(100), rec.Balance)
		}
	}
}

func TestSavePersistenceError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctrl := gomock.NewController(t)
	persister := NewMockPersister(ctrl)

	persister.EXPECT().Load(gomock.Any()).Times(1).Return(Snapshot{}, nil)

	repo, err := New(ctx, persister)
	require.NoError(t, err)

	account := randomAccount()

	persister.EXPECT().Save(gomock.Any(), gomock.Any()).Times(1).Return(errors.New("disk full"))

	_, err = repo.Create(ctx, account)
	require.ErrorIs(t, err, domain.ErrPersistence)

	_, err = repo.Get(ctx, account.Email)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = repo.Find(ctx, account.Email)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSaveTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctrl := gomock.NewController(t)
	persister := NewMockPersister(ctrl)

	persister.EXPECT().Load(gomock.Any()).Times(1).Return(Snapshot{}, nil)
	persister.EXPECT().Save(gomock.Any(), gomock.Any()).Times(1).
		DoAndReturn(func(ctx context.Context, _ Snapshot) error {
			<-ctx.Done()
			return ctx.Err()
		})

	repo, err := New(ctx, persister, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = repo.Create(ctx, randomAccount())
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestLoadError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persister := NewMockPersister(ctrl)

	persister.EXPECT().Load(gomock.Any()).Times(1).Return(Snapshot{}, errors.New("corrupt"))

	_, err := New(context.Background(), persister)
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestLoadRejectsInconsistentSnapshot(t *testing.T) {
	t.Parallel()

	record := func(email string, balance int64, amounts ...int64) AccountRecord {
		rec := newAccountRecord(domain.Account{Name: randompkg.Owner(), Email: email, Balance: balance})

		for i, amount := range amounts {
			rec.Transactions = append(rec.Transactions, TransactionRecord{
				Seq:         int64(i + 1),
				Timestamp:   time.Now().UTC(),
				Amount:      amount,
				Description: "deposit",
			})
		}

		return rec
	}

	testCases := []struct {
		name     string
		accounts []AccountRecord
	}{
		{
			name:     "NegativeBalance",
			accounts: []AccountRecord{record("a@x", -500, -500)},
		},
		{
			name:     "BalanceDiffersFromHistory",
			accounts: []AccountRecord{record("a@x", 700, 500)},
		},
		{
			name:     "BalanceWithoutHistory",
			accounts: []AccountRecord{record("a@x", 7)},
		},
		{
			name:     "DuplicateEmail",
			accounts: []AccountRecord{record("b@x", 100, 100), record("b@x", 0)},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			persister := NewMockPersister(ctrl)

			persister.EXPECT().Load(gomock.Any()).Times(1).Return(Snapshot{Accounts: tc.accounts}, nil)

			_, err := New(context.Background(), persister)
			require.ErrorIs(t, err, domain.ErrPersistence)
		})
	}
}

func TestLoadAcceptsConsistentSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileStore(t.TempDir() + "/users.json")

	snap := randomSnapshot(3)
	require.NoError(t, store.Save(ctx, snap))

	repo, err := New(ctx, store)
	require.NoError(t, err)
	require.Len(t, repo.Snapshot(ctx), 3)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileStore(t.TempDir() + "/users.json")

	repo, err := New(ctx, store)
	require.NoError(t, err)

	a, err := repo.Create(ctx, randomAccount())
	require.NoError(t, err)

	b, err := repo.Create(ctx, randomAccount())
	require.NoError(t, err)

	transferID := uuid.New()
	now := time.Now().UTC()

	unlock := repo.Lock(a.Email, b.Email)
	require.NoError(t, a.Apply(domain.Transaction{Seq: repo.NextSeq(), Timestamp: now, Amount: 10_000, Description: "deposit"}))
	require.NoError(t, a.Apply(domain.Transaction{
		Seq: repo.NextSeq(), Timestamp: now, Counterparty: b.Email, Amount: -4_000,
		Description: "transfer to " + b.Email, TransferID: transferID,
	}))
	require.NoError(t, b.Apply(domain.Transaction{
		Seq: repo.NextSeq(), Timestamp: now, Counterparty: a.Email, Amount: 4_000,
		Description: "transfer from " + a.Email, TransferID: transferID,
	}))
	require.NoError(t, repo.Save(ctx, a, b))
	unlock()

	reloaded, err := New(ctx, store)
	require.NoError(t, err)

	if diff := cmp.Diff(repo.Snapshot(ctx), reloaded.Snapshot(ctx), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("reloaded store returned unexpected diff: %v", diff)
	}

	// Sequence numbers continue after the reload.
	require.Greater(t, reloaded.NextSeq(), int64(3))
}

func TestLockOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	a := seedAccount(t, repo, 1_000_000)
	b := seedAccount(t, repo, 1_000_000)

	move := func(from, to *domain.Account, amount int64) {
		unlock := repo.Lock(from.Email, to.Email)
		defer unlock()

		debit := domain.Transaction{Seq: repo.NextSeq(), Amount: -amount}
		credit := domain.Transaction{Seq: repo.NextSeq(), Amount: amount}

		assert.NoError(t, from.Apply(debit))
		assert.NoError(t, to.Apply(credit))
		assert.NoError(t, repo.Save(ctx, from, to))
	}

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			move(a, b, 7)
		}()

		go func() {
			defer wg.Done()
			move(b, a, 3)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposite direction transfers deadlocked")
	}

	balanceA, err := repo.Balance(ctx, a.Email)
	require.NoError(t, err)

	balanceB, err := repo.Balance(ctx, b.Email)
	require.NoError(t, err)

	require.Equal(t, int64(2_000_000), balanceA+balanceB)
	require.Equal(t, int64(1_000_000-50*4), balanceA)
}

func TestLockDuplicates(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	a := seedAccount(t, repo, 0)

	unlock := repo.Lock(a.Email, a.Email, "unknown@x")
	unlock()

	// The lock is free again.
	unlock = repo.Lock(a.Email)
	unlock()
}

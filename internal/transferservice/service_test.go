package transferservice

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/eventpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSession(email string) domain.Session {
	return domain.Session{Email: email, ExpiresAt: time.Now().Add(time.Hour)}
}

type failingStore struct {
	*accountrepo.MemStore

	mu   sync.Mutex
	fail bool
}

func (s *failingStore) Save(ctx context.Context, snap accountrepo.Snapshot) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()

	if fail {
		return errors.New("disk full")
	}

	return s.MemStore.Save(ctx, snap)
}

func (s *failingStore) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func newRepo(t *testing.T) (*accountrepo.Repo, *failingStore) {
	t.Helper()

	store := &failingStore{MemStore: accountrepo.NewMemStore()}

	repo, err := accountrepo.New(context.Background(), store)
	require.NoError(t, err)

	return repo, store
}

// createAccount registers an account with email and funds it with balance.
func createAccount(t *testing.T, repo *accountrepo.Repo, email string, balance int64) {
	t.Helper()

	ctx := context.Background()

	a, err := repo.Create(ctx, domain.Account{
		Name:           randompkg.Owner(),
		Email:          email,
		HashedPassword: randompkg.String(60),
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	if balance == 0 {
		return
	}

	unlock := repo.Lock(email)
	defer unlock()

	require.NoError(t, a.Apply(domain.Transaction{
		Seq:         repo.NextSeq(),
		Timestamp:   time.Now().UTC(),
		Amount:      balance,
		Description: "deposit",
	}))
	require.NoError(t, repo.Save(ctx, a))
}

func balanceOf(t *testing.T, repo *accountrepo.Repo, email string) int64 {
	t.Helper()

	b, err := repo.Balance(context.Background(), email)
	require.NoError(t, err)

	return b
}

func TestTransferAliceBob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t)

	createAccount(t, repo, "alice@x.com", 10_000)
	createAccount(t, repo, "bob@x.com", 0)

	transferService := New(repo, eventpkg.Nop{}, nil)

	res, err := transferService.Transfer(ctx, newSession("alice@x.com"), "bob@x.com", 4_000)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.ID)
	require.Equal(t, int64(6_000), res.FromBalance)
	require.Equal(t, int64(4_000), res.ToBalance)
	require.Equal(t, int64(-4_000), res.FromEntry.Amount)
	require.Equal(t, int64(4_000), res.ToEntry.Amount)
	require.Equal(t, res.ID, res.FromEntry.TransferID)
	require.Equal(t, res.ID, res.ToEntry.TransferID)
	require.Equal(t, "bob@x.com", res.FromEntry.Counterparty)
	require.Equal(t, "alice@x.com", res.ToEntry.Counterparty)
	require.Equal(t, "transfer to bob@x.com", res.FromEntry.Description)
	require.Equal(t, "transfer from alice@x.com", res.ToEntry.Description)

	require.Equal(t, int64(6_000), balanceOf(t, repo, "alice@x.com"))
	require.Equal(t, int64(4_000), balanceOf(t, repo, "bob@x.com"))

	_, err = transferService.Transfer(ctx, newSession("alice@x.com"), "bob@x.com", 9_000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.Equal(t, int64(6_000), balanceOf(t, repo, "alice@x.com"))
	require.Equal(t, int64(4_000), balanceOf(t, repo, "bob@x.com"))
}

func TestTransferRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		sess      domain.Session
		to        string
		amount    int64
		wantError error
	}{
		{
			name:      "UnknownRecipient",
			sess:      newSession("alice@x.com"),
			to:        "carol@x.com",
			amount:    100,
			wantError: domain.ErrRecipientNotFound,
		},
		{
			name:      "RecipientEmailIsCaseSensitive",
			sess:      newSession("alice@x.com"),
			to:        "Bob@x.com",
			amount:    100,
			wantError: domain.ErrRecipientNotFound,
		},
		{
			name:      "SelfTransfer",
			sess:      newSession("alice@x.com"),
			to:        "alice@x.com",
			amount:    100,
			wantError: domain.ErrSelfTransfer,
		},
		{
			name:      "ZeroAmount",
			sess:      newSession("alice@x.com"),
			to:        "bob@x.com",
			amount:    0,
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:      "NegativeAmount",
			sess:      newSession("alice@x.com"),
			to:        "bob@x.com",
			amount:    -100,
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:      "InsufficientBalance",
			sess:      newSession("alice@x.com"),
			to:        "bob@x.com",
			amount:    1_001,
			wantError: domain.ErrInsufficientBalance,
		},
		{
			name:      "ExpiredSession",
			sess:      domain.Session{Email: "alice@x.com", ExpiresAt: time.Now().Add(-time.Second)},
			to:        "bob@x.com",
			amount:    100,
			wantError: domain.ErrExpiredSession,
		},
		{
			name:      "UnknownRecipientBeforeAmount",
			sess:      newSession("alice@x.com"),
			to:        "carol@x.com",
			amount:    -1,
			wantError: domain.ErrRecipientNotFound,
		},
		{
			name:      "SelfBeforeAmount",
			sess:      newSession("alice@x.com"),
			to:        "alice@x.com",
			amount:    0,
			wantError: domain.ErrSelfTransfer,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo, _ := newRepo(t)

			createAccount(t, repo, "alice@x.com", 1_000)
			createAccount(t, repo, "bob@x.com", 1_000)

			before := repo.Snapshot(ctx)

			_, err := New(repo, eventpkg.Nop{}, nil).Transfer(ctx, tc.sess, tc.to, tc.amount)
			require.ErrorIs(t, err, tc.wantError)

			require.Equal(t, before, repo.Snapshot(ctx))
		})
	}
}

func TestTransferPersistenceFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, store := newRepo(t)

	createAccount(t, repo, "alice@x.com", 1_000)
	createAccount(t, repo, "bob@x.com", 500)

	ctrl := gomock.NewController(t)
	publisher := eventpkg.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	store.setFail(true)

	_, err := New(repo, publisher, nil).Transfer(ctx, newSession("alice@x.com"), "bob@x.com", 300)
	require.ErrorIs(t, err, domain.ErrPersistence)

	for email, want := range map[string]int64{"alice@x.com": 1_000, "bob@x.com": 500} {
		require.Equal(t, want, balanceOf(t, repo, email))

		live, err := repo.Get(ctx, email)
		require.NoError(t, err)
		require.Equal(t, want, live.Balance)
		require.Len(t, live.Transactions, 1)
	}

	// Nothing reached the durable store either.
	snap, err := store.Load(ctx)
	require.NoError(t, err)

	for _, rec := range snap.Accounts {
		require.Len(t, rec.Transactions, 1)
	}
}

func TestTransferPublishesBothLegs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t)

	createAccount(t, repo, "alice@x.com", 1_000)
	createAccount(t, repo, "bob@x.com", 0)

	ctrl := gomock.NewController(t)
	publisher := eventpkg.NewMockPublisher(ctrl)

	var events []eventpkg.TransactionCompleted

	record := func(_ context.Context, _, _ string, event any) error {
		events = append(events, event.(eventpkg.TransactionCompleted))
		return nil
	}

	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), eventpkg.TopicTransactions, "alice@x.com", gomock.Any()).Times(1).DoAndReturn(record),
		publisher.EXPECT().Publish(gomock.Any(), eventpkg.TopicTransactions, "bob@x.com", gomock.Any()).Times(1).DoAndReturn(record),
	)

	res, err := New(repo, publisher, nil).Transfer(ctx, newSession("alice@x.com"), "bob@x.com", 250)
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Equal(t, res.ID, events[0].TransferID)
	require.Equal(t, res.ID, events[1].TransferID)
	require.Equal(t, int64(750), events[0].Balance)
	require.Equal(t, int64(250), events[1].Balance)
	require.Less(t, events[0].Seq, events[1].Seq)
}

func TestTransferRecipientChangedWhileLocking(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)

	from := &domain.Account{Email: "alice@x.com", Balance: 1_000}
	to := &domain.Account{Email: "bob@x.com"}
	replaced := &domain.Account{Email: "bob@x.com"}

	unlocked := false

	gomock.InOrder(
		repo.EXPECT().Get(gomock.Any(), "alice@x.com").Times(1).Return(from, nil),
		repo.EXPECT().Get(gomock.Any(), "bob@x.com").Times(1).Return(to, nil),
		repo.EXPECT().Lock("alice@x.com", "bob@x.com").Times(1).Return(func() { unlocked = true }),
		repo.EXPECT().Get(gomock.Any(), "bob@x.com").Times(1).Return(replaced, nil),
	)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

	_, err := New(repo, nil, nil).Transfer(context.Background(), newSession("alice@x.com"), "bob@x.com", 10)
	require.ErrorIs(t, err, domain.ErrRecipientNotFound)
	require.True(t, unlocked)
	require.Equal(t, int64(1_000), from.Balance)
	require.Empty(t, from.Transactions)
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t)

	createAccount(t, repo, "alice@x.com", 100_000)
	createAccount(t, repo, "bob@x.com", 100_000)

	transferService := New(repo, eventpkg.Nop{}, nil)

	const n = 100

	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			if _, err := transferService.Transfer(ctx, newSession("alice@x.com"), "bob@x.com", 10); err != nil {
				t.Errorf("alice -> bob failed: %v", err)
			}
		}()

		go func() {
			defer wg.Done()

			if _, err := transferService.Transfer(ctx, newSession("bob@x.com"), "alice@x.com", 30); err != nil {
				t.Errorf("bob -> alice failed: %v", err)
			}
		}()
	}

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("opposite direction transfers deadlocked")
	}

	require.Equal(t, int64(100_000+n*20), balanceOf(t, repo, "alice@x.com"))
	require.Equal(t, int64(100_000-n*20), balanceOf(t, repo, "bob@x.com"))
}

func TestConservation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t)

	emails := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}
	for _, e := range emails {
		createAccount(t, repo, e, 1_000)
	}

	transferService := New(repo, eventpkg.Nop{}, nil)

	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)

		go func(seed int64) {
			defer wg.Done()

			r := rand.New(rand.NewSource(seed))

			for i := 0; i < 50; i++ {
				from := emails[r.Intn(len(emails))]
				to := emails[r.Intn(len(emails))]

				_, err := transferService.Transfer(ctx, newSession(from), to, r.Int63n(400))
				if err != nil &&
					!errors.Is(err, domain.ErrInsufficientBalance) &&
					!errors.Is(err, domain.ErrSelfTransfer) &&
					!errors.Is(err, domain.ErrInvalidAmount) {
					t.Errorf("unexpected transfer error: %v", err)
				}
			}
		}(int64(w))
	}

	wg.Wait()

	var total int64

	for _, a := range repo.Snapshot(ctx) {
		require.GreaterOrEqual(t, a.Balance, int64(0))

		var sum int64
		for _, tx := range a.Transactions {
			sum += tx.Amount
		}

		require.Equal(t, a.Balance, sum)

		total += a.Balance
	}

	require.Equal(t, int64(len(emails)*1_000), total)
}

// Package accountrepo manages repository layer of accounts.
//
// Repo keeps every account as a live *domain.Account. Services mutate those
// handles under the account lock and then call Save, which persists one snapshot
// built from the last committed state plus the saved accounts. Reads are served
// from the committed state only, so an in-flight mutation is never observable.
package accountrepo

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/metricspkg"
)

// Repo is the durable keyed collection of accounts.
type Repo struct {
	persister Persister
	timeout   time.Duration
	metrics   *metricspkg.Metrics

	// mu guards accounts and locks. Lock order: mu, then commitMu.
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	locks    map[string]*sync.Mutex

	// commitMu serializes snapshot writes and guards committed.
	commitMu  sync.RWMutex
	committed map[string]domain.Account

	seq atomic.Int64
}

// Option configures Repo.
type Option func(*Repo)

// WithTimeout bounds every snapshot write. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Repo) {
		r.timeout = d
	}
}

// WithMetrics records snapshot writes in m.
func WithMetrics(m *metricspkg.Metrics) Option {
	return func(r *Repo) {
		r.metrics = m
	}
}

// New returns a Repo loaded from p.
func New(ctx context.Context, p Persister, opts ...Option) (*Repo, error) {
	r := &Repo{
		persister: p,
		accounts:  make(map[string]*domain.Account),
		locks:     make(map[string]*sync.Mutex),
		committed: make(map[string]domain.Account),
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Repo) load(ctx context.Context) error {
	l := zerolog.Ctx(ctx)

	snap, err := r.persister.Load(ctx)
	if err != nil {
		l.Error().Err(err).Msg("cannot load snapshot")
		return domain.ErrPersistence
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	maxSeq := snap.NextSeq

	for _, rec := range snap.Accounts {
		a, err := rec.toDomain()
		if err != nil {
			l.Error().Err(err).Str("email", rec.Email).Msg("cannot decode account")
			return domain.ErrPersistence
		}

		if _, ok := r.accounts[a.Email]; ok {
			l.Error().Str("email", a.Email).Msg("duplicate account in snapshot")
			return domain.ErrPersistence
		}

		if err := a.Check(); err != nil {
			l.Error().Err(err).Str("email", a.Email).Msg("inconsistent account in snapshot")
			return domain.ErrPersistence
		}

		for _, tx := range a.Transactions {
			if tx.Seq > maxSeq {
				maxSeq = tx.Seq
			}
		}

		live := a.Clone()
		r.accounts[a.Email] = &live
		r.locks[a.Email] = &sync.Mutex{}
		r.committed[a.Email] = a
	}

	r.seq.Store(maxSeq)

	l.Debug().Int("accounts", len(snap.Accounts)).Int64("next_seq", maxSeq).Msg("snapshot loaded")

	return nil
}

// Get returns the live account handle for email.
func (r *Repo) Get(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return a, nil
}

// Create persists a new account and returns its live handle.
func (r *Repo) Create(ctx context.Context, account domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.Email]; ok {
		return nil, domain.ErrEmailAlreadyExists
	}

	live := account.Clone()

	if err := r.Save(ctx, &live); err != nil {
		return nil, err
	}

	r.accounts[live.Email] = &live
	r.locks[live.Email] = &sync.Mutex{}

	return &live, nil
}

// Lock acquires the locks of the given accounts in lexicographic email order
// and returns the function releasing them. Unknown emails are skipped.
func (r *Repo) Lock(emails ...string) (unlock func()) {
	sorted := make([]string, len(emails))
	copy(sorted, emails)
	sort.Strings(sorted)

	r.mu.RLock()
	locks := make([]*sync.Mutex, 0, len(sorted))

	for i, email := range sorted {
		if i > 0 && sorted[i-1] == email {
			continue
		}

		if m, ok := r.locks[email]; ok {
			locks = append(locks, m)
		}
	}
	r.mu.RUnlock()

	for _, m := range locks {
		m.Lock()
	}

	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// NextSeq allocates the next transaction sequence number.
func (r *Repo) NextSeq() int64 {
	return r.seq.Add(1)
}

// Save durably writes the current state of the given live accounts together with
// the committed state of all others in a single snapshot.
//
// The caller must hold the locks of the saved accounts. On failure nothing is
// committed and the caller has to undo its in-memory changes.
func (r *Repo) Save(ctx context.Context, accounts ...*domain.Account) error {
	l := zerolog.Ctx(ctx)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)

		defer cancel()
	}

	staged := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		staged[a.Email] = a.Clone()
	}

	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	snap := r.snapshotWith(staged)

	start := time.Now()
	err := r.persister.Save(ctx, snap)
	r.metrics.ObservePersist(time.Since(start), err)

	if err != nil {
		l.Error().Err(err).Int("accounts", len(staged)).Msg("cannot save snapshot")
		return domain.ErrPersistence
	}

	for email, a := range staged {
		r.committed[email] = a
	}

	return nil
}

// snapshotWith builds the snapshot of committed state overlaid with staged.
// commitMu must be held.
func (r *Repo) snapshotWith(staged map[string]domain.Account) Snapshot {
	records := make([]AccountRecord, 0, len(r.committed)+len(staged))

	for email, a := range r.committed {
		if s, ok := staged[email]; ok {
			a = s
		}

		records = append(records, newAccountRecord(a))
	}

	for email, s := range staged {
		if _, ok := r.committed[email]; !ok {
			records = append(records, newAccountRecord(s))
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Email < records[j].Email
	})

	return Snapshot{
		Meta: Meta{
			Version:   SnapshotVersion,
			Timestamp: time.Now().UTC(),
		},
		NextSeq:  r.seq.Load(),
		Accounts: records,
	}
}

// Find returns a copy of the committed state of the account with email.
func (r *Repo) Find(ctx context.Context, email string) (domain.Account, error) {
	r.commitMu.RLock()
	defer r.commitMu.RUnlock()

	a, ok := r.committed[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a.Clone(), nil
}

// Balance returns the committed balance of the account with email.
func (r *Repo) Balance(ctx context.Context, email string) (int64, error) {
	r.commitMu.RLock()
	defer r.commitMu.RUnlock()

	a, ok := r.committed[email]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}

	return a.Balance, nil
}

// Snapshot returns copies of all committed accounts sorted by email.
func (r *Repo) Snapshot(ctx context.Context) []domain.Account {
	r.commitMu.RLock()
	defer r.commitMu.RUnlock()

	accounts := make([]domain.Account, 0, len(r.committed))
	for _, a := range r.committed {
		accounts = append(accounts, a.Clone())
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Email < accounts[j].Email
	})

	return accounts
}

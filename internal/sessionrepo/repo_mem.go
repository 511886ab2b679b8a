// Package sessionrepo manages repository layer of sessions.
package sessionrepo

import (
	"context"
	"sync"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RepoMem keeps sessions in process memory. Sessions do not survive a restart.
type RepoMem struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session
}

// NewRepoMem returns an empty session RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{
		sessions: make(map[uuid.UUID]domain.Session),
	}
}

// Create stores the session and then returns it.
func (r *RepoMem) Create(ctx context.Context, s domain.Session) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s

	zerolog.Ctx(ctx).Debug().Str("session_id", s.ID.String()).Str("email", s.Email).Msg("session created")

	return s, nil
}

// Get returns session with the given id.
func (r *RepoMem) Get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	return s, nil
}

// Delete removes session with the given id.
func (r *RepoMem) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}

	delete(r.sessions, id)

	return nil
}

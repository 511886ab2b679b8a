// Package sessionservice manages business logic layer of sessions.
package sessionservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by session service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package sessionservice
type Repo interface {
	Create(ctx context.Context, s domain.Session) (domain.Session, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service facilitates session service layer logic.
type Service struct {
	repo       Repo
	config     configpkg.Config
	tokenMaker tokenpkg.Maker
}

// New returns session service struct to manage session business logic.
func New(sr Repo, config configpkg.Config, tm tokenpkg.Maker) (*Service, error) {
	return &Service{
		repo:       sr,
		config:     config,
		tokenMaker: tm,
	}, nil
}

// Create issues a session token for email and stores the session.
// name is the account holder's display name.
func (s *Service) Create(ctx context.Context, email, name string) (domain.Session, error) {
	l := zerolog.Ctx(ctx)

	token, payload, err := s.tokenMaker.CreateToken(email, s.config.SessionDuration)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Session{}, err
	}

	sess, err := s.repo.Create(ctx, domain.Session{
		ID:        payload.ID,
		Email:     email,
		Name:      name,
		Token:     token,
		CreatedAt: payload.IssuedAt,
		ExpiresAt: payload.ExpiredAt,
	})
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Session{}, err
	}

	return sess, nil
}

// Verify returns the stored session identified by token.
func (s *Service) Verify(ctx context.Context, token string) (domain.Session, error) {
	payload, err := s.tokenMaker.VerifyToken(token)
	if err != nil {
		switch {
		case errors.Is(err, tokenpkg.ErrExpiredToken):
			return domain.Session{}, domain.ErrExpiredSession
		default:
			return domain.Session{}, domain.ErrInvalidSession
		}
	}

	sess, err := s.repo.Get(ctx, payload.ID)
	if err != nil {
		return domain.Session{}, err
	}

	if sess.Email != payload.Email {
		return domain.Session{}, domain.ErrInvalidUser
	}

	if sess.Token != token {
		return domain.Session{}, domain.ErrInvalidSession
	}

	if err := sess.Valid(time.Now()); err != nil {
		return domain.Session{}, err
	}

	return sess, nil
}

// Revoke deletes the session identified by token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	sess, err := s.Verify(ctx, token)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, sess.ID); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("session_id", sess.ID.String()).Msg("session revoked")

	return nil
}

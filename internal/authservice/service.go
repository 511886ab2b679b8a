// Package authservice manages registration, login and logout of customers.
package authservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by auth service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package authservice
type Repo interface {
	Create(ctx context.Context, account domain.Account) (*domain.Account, error)
	Find(ctx context.Context, email string) (domain.Account, error)
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Check(password, hashedPassword string) error
}

// SessionMaker issues and revokes sessions.
type SessionMaker interface {
	Create(ctx context.Context, email, name string) (domain.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Service facilitates auth service layer logic.
type Service struct {
	repo     Repo
	hasher   Hasher
	sessions SessionMaker
	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// New returns auth service struct to manage registration and login.
func New(ar Repo, h Hasher, sm SessionMaker) *Service {
	return &Service{
		repo:     ar,
		hasher:   h,
		sessions: sm,
		validate: validator.New(),
	}
}

// Emails are opaque account keys, so only presence and length are checked.
// bcrypt rejects passwords longer than 72 bytes.
type registerInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,max=254"`
	Password string `validate:"required,max=72"`
}

func errorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " is required"
	case "max":
		return " must be at most " + fe.Param() + " characters long"
	}

	return " is invalid"
}

// Register creates an account with zero balance.
func (s *Service) Register(ctx context.Context, name, email, password string) (domain.AccountSummary, error) {
	l := zerolog.Ctx(ctx)

	var result domain.AccountSummary

	in := registerInput{Name: name, Email: email, Password: password}
	if err := s.validate.Struct(in); err != nil {
		l.Info().Err(err).Msg("registration input rejected")

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			field := ve[0]
			return result, fmt.Errorf("%w: %s%s", domain.ErrInvalidInput, field.Field(), errorMsg(field))
		}

		return result, domain.ErrInvalidInput
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	created, err := s.repo.Create(ctx, domain.Account{
		Name:           name,
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return result, err
	}

	l.Info().Str("email", email).Msg("account registered")

	return created.Summary(), nil
}

// Login checks the credentials and opens a session.
// Unknown emails and wrong passwords are reported identically.
func (s *Service) Login(ctx context.Context, email, password string) (domain.Session, error) {
	l := zerolog.Ctx(ctx)

	account, err := s.repo.Find(ctx, email)
	if err != nil {
		// Unknown emails still cost one hash comparison.
		_ = s.hasher.Check(password, s.dummy())

		l.Warn().Err(err).Msg("login failed")
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	if err := s.hasher.Check(password, account.HashedPassword); err != nil {
		l.Warn().Err(err).Msg("login failed")
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	return s.sessions.Create(ctx, account.Email, account.Name)
}

// dummy returns a hash made with the configured hasher, compared against when
// the email is unknown.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("pet-ledger-unknown-account")
		if err == nil {
			s.dummyHash = hash
		}
	})

	return s.dummyHash
}

// Logout revokes the session identified by token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

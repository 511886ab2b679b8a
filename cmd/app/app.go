// Package app manages ledger creation and wires its services into the menu.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/authservice"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/menudelivery"
	"github.com/go-petr/pet-ledger/internal/reportservice"
	"github.com/go-petr/pet-ledger/internal/sessionrepo"
	"github.com/go-petr/pet-ledger/internal/sessionservice"
	"github.com/go-petr/pet-ledger/internal/transferservice"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/eventpkg"
	"github.com/go-petr/pet-ledger/pkg/metricspkg"
	"github.com/go-petr/pet-ledger/pkg/passpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// App holds the loaded ledger, its menu and configuration.
type App struct {
	Config   configpkg.Config
	Menu     *menudelivery.Handler
	Registry *prometheus.Registry

	closers []io.Closer
}

// New loads the ledger from the configured store and instantiates all services.
func New(ctx context.Context, logger zerolog.Logger, config configpkg.Config) (*App, error) {
	a := &App{Config: config}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := metricspkg.New(reg)
	a.Registry = reg

	persister, err := a.newPersister(ctx, config)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cannot open %s store: %w", config.StoreDriver, err)
	}

	accountRepo, err := accountrepo.New(ctx, persister,
		accountrepo.WithTimeout(config.PersistTimeout),
		accountrepo.WithMetrics(metrics),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cannot load accounts: %w", err)
	}

	key := config.TokenSymmetricKey
	if key == "" {
		// Sessions live in memory only, so a per process key is enough.
		key = strings.ReplaceAll(uuid.NewString(), "-", "")
		logger.Warn().Msg("TOKEN_SYMMETRIC_KEY is not set, using a random key")
	}

	tokenMaker, err := tokenpkg.New(config.TokenType, key)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cannot create token maker: %w", err)
	}

	sessionService, err := sessionservice.New(sessionrepo.NewRepoMem(), config, tokenMaker)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cannot initialize session service: %w", err)
	}

	var publisher eventpkg.Publisher = eventpkg.Nop{}

	if len(config.KafkaBrokers) > 0 {
		kafkaPublisher := eventpkg.NewKafkaPublisher(config.KafkaBrokers)
		a.closers = append(a.closers, kafkaPublisher)
		publisher = kafkaPublisher
	}

	authService := authservice.New(accountRepo, passpkg.Bcrypt{Cost: config.BcryptCost}, sessionService)
	ledgerService := ledgerservice.New(accountRepo, publisher, metrics)
	transferService := transferservice.New(accountRepo, publisher, metrics)
	reportService := reportservice.New(accountRepo, config.AdminEmails)

	a.Menu = menudelivery.NewHandler(authService, sessionService, ledgerService, transferService, reportService, logger)

	logger.Info().
		Str("store", config.StoreDriver).
		Int("accounts", len(accountRepo.Snapshot(ctx))).
		Msg("ledger loaded")

	return a, nil
}

func (a *App) newPersister(ctx context.Context, config configpkg.Config) (accountrepo.Persister, error) {
	switch config.StoreDriver {
	case "", "file":
		return accountrepo.NewFileStore(config.DataFile), nil
	case "memory":
		return accountrepo.NewMemStore(), nil
	case "sqlite", "postgres":
		db, err := dbpkg.Setup(config.StoreDriver, config.DBSource)
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, db)

		if config.StoreDriver == "sqlite" {
			db.SetMaxOpenConns(1)
		}

		return accountrepo.NewSQLStore(ctx, db, config.StoreDriver)
	}

	return nil, fmt.Errorf("unknown STORE_DRIVER %q", config.StoreDriver)
}

// Run serves the menu on in and out until the user exits.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return a.Menu.Run(ctx, in, out)
}

// Close releases the store connection and the event publisher.
func (a *App) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}

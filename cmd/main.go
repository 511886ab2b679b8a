// Package main runs the interactive banking ledger.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/go-petr/pet-ledger/cmd/app"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/logpkg"
	"github.com/go-petr/pet-ledger/pkg/metricspkg"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := logpkg.CreateLogger(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithContext(ctx)

	ledger, err := app.New(ctx, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start ledger")
	}

	logger.Info().Msg("LEDGER HAS STARTED")

	// The menu blocks on stdin, so a signal ends the program without waiting for input.
	done := make(chan error, 1)

	go func() {
		done <- ledger.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if config.MetricsFile != "" {
		if werr := metricspkg.WriteTextfile(config.MetricsFile, ledger.Registry); werr != nil {
			logger.Error().Err(werr).Msg("cannot write metrics")
		}
	}

	if cerr := ledger.Close(); cerr != nil {
		logger.Error().Err(cerr).Msg("cannot close ledger")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("ledger stopped")
	}
}

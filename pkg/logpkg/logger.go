// Package logpkg creates the application logger and operation scoped loggers.
package logpkg

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

// CreateLogger returns a JSON logger writing to stderr.
// In development it switches to a human readable console writer at trace level.
func CreateLogger(config configpkg.Config) zerolog.Logger {
	return newLogger(config, os.Stderr)
}

func newLogger(config configpkg.Config, output io.Writer) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logLevel := zerolog.InfoLevel // default to INFO

	log := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	if config.Environment == "development" {
		log = log.
			Output(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
			Level(zerolog.TraceLevel).
			With().
			Caller().
			Logger()
	}

	return log
}

// WithOperation returns ctx carrying a child of logger tagged with the
// operation name and a fresh operation id.
func WithOperation(ctx context.Context, logger zerolog.Logger, operation string) context.Context {
	l := logger.With().
		Str("operation", operation).
		Str("operation_id", uuid.NewString()).
		Logger()

	return l.WithContext(ctx)
}

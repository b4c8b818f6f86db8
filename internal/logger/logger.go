package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger for local development and a JSON logger
// everywhere else.
func New(environment string) zerolog.Logger {
	env := strings.ToLower(strings.TrimSpace(environment))

	level := zerolog.InfoLevel
	if env == "development" || env == "local" {
		level = zerolog.DebugLevel
	}

	if env == "development" || env == "local" {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(writer).Level(level).With().Timestamp().Str("service", "jobpay").Logger()
	}

	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "jobpay").Logger()
}

package config

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: JSON in prod, console in dev.
func NewLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

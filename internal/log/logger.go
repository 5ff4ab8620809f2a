package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Production writes JSON lines; every other
// environment gets the console writer. An empty or unknown level falls back
// to debug outside production and info in it.
func New(environment, level string) zerolog.Logger {
	return newLogger(os.Stdout, environment, level)
}

func newLogger(out io.Writer, environment, level string) zerolog.Logger {
	production := environment == "production"
	if !production {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(level, production))

	return zerolog.New(out).With().
		Timestamp().
		Str("env", environment).
		Logger()
}

func parseLevel(level string, production bool) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		return parsed
	}
	if production {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// WithComponent tags every event with the emitting component.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

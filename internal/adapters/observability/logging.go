package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process logger. APP_ENV=dev (or development)
// switches to a console writer at debug level; anything else logs JSON
// at info level.
func NewLogger(env string) zerolog.Logger {
	switch env {
	case "dev", "development":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Str("app", "propsearch").Logger()
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return zerolog.New(os.Stdout).With().Timestamp().Str("app", "propsearch").Logger()
	}
}

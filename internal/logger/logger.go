package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development environments get debug level
// and human readable console output; everything else logs JSON at info.
func New(env string) zerolog.Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

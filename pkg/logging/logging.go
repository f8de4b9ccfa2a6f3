// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. Console output is human readable;
// anything else writes JSON lines. Unknown levels fall back to info.
func Setup(level string, console bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stderr
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

var _ badger.Logger = (*badgerLogger)(nil)

type badgerLogger struct {
	lg zerolog.Logger
}

// Badger routes BadgerDB's internal logging through zerolog at warn level
// and above.
func Badger() badger.Logger {
	return &badgerLogger{lg: log.Logger.With().Str("component", "badger").Logger().Level(zerolog.WarnLevel)}
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.lg.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.lg.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.lg.Info().Msgf(strings.TrimSpace(format), args...)
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.lg.Debug().Msgf(strings.TrimSpace(format), args...)
}

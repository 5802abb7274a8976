// Package logging holds the zerolog setup shared by the orgsync CLI, the
// reconciliation procedures and the directory worker.
//
// Loggers travel in the context. Procedures attach the fields they care
// about and read the logger back with Ctx:
//
//	ctx = logging.WithProcedure(ctx, "reconcile_ramp_users")
//	logging.Ctx(ctx).Warn().Str("ramp_user_id", id).Msg("Unmatched Ramp user")
//
// Code without a logger in its context falls back to the process default,
// which the CLI replaces once flags are parsed.
package logging

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu       sync.RWMutex
	fallback = NewLoggerFromConfig(DefaultConfig())
)

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := fallback
	return &l
}

// SetDefault replaces the process-wide logger, including zerolog's global
// log.Logger used by third-party code.
func SetDefault(logger zerolog.Logger) {
	mu.Lock()
	fallback = logger
	mu.Unlock()
	log.Logger = logger
}

// NewNopLogger returns a logger that writes nothing.
func NewNopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func isTerminal(f *os.File) bool {
	return f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{ name string }

var (
	loggerKey = ctxKey{"logger"}
	runIDKey  = ctxKey{"run_id"}
)

// WithLogger stores logger in ctx. A nil logger stores the default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// Ctx is shorthand for FromContext.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}

// WithRunID tags ctx with the ID of a reconciliation run or worker task.
// Every line logged through the returned context carries run_id.
func WithRunID(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("run_id", runID)
	})
}

// RunID returns the run ID set by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithProcedure names the reconciliation procedure being run.
func WithProcedure(ctx context.Context, procedure string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("procedure", procedure)
	})
}

// WithSystem names the external system a procedure is talking to.
func WithSystem(ctx context.Context, system string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("system", system)
	})
}

// WithPerson identifies the local directory entry being changed.
func WithPerson(ctx context.Context, personID int64, username string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Int64("person_id", personID).Str("username", username)
	})
}

// WithFields attaches arbitrary fields to the logger in ctx.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		for key, value := range fields {
			c = appendField(c, key, value)
		}
		return c
	})
}

func with(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	logger := add(FromContext(ctx).With()).Logger()
	return WithLogger(ctx, &logger)
}

func appendField(c zerolog.Context, key string, value any) zerolog.Context {
	switch v := value.(type) {
	case string:
		return c.Str(key, v)
	case int:
		return c.Int(key, v)
	case int64:
		return c.Int64(key, v)
	case bool:
		return c.Bool(key, v)
	case error:
		return c.AnErr(key, v)
	default:
		return c.Interface(key, v)
	}
}

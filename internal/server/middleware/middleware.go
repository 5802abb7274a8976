// Package middleware wraps the worker's ops endpoints.
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies ms so that ms[0] sees the request first.
func Chain(ms ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(ms) - 1; i >= 0; i-- {
			h = ms[i](h)
		}
		return h
	}
}

// Logger records one line per request: debug normally, warn for 5xx.
func Logger(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(logger.WithContext(r.Context())))

			level := zerolog.DebugLevel
			if sw.status >= http.StatusInternalServerError {
				level = zerolog.WarnLevel
			}
			logger.WithLevel(level).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("Ops request")
		})
	}
}

// Recovery answers 500 when a handler panics.
func Recovery(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("Ops handler panicked")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

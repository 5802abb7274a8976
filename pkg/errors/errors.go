// Package errors defines the error types shared by the source clients, the
// directory store and the reconciliation procedures. Every type matches one
// of the sentinels below through errors.Is, so callers branch on the kind of
// failure without caring which layer produced it.
package errors

import "errors"

// Re-exported so callers need a single errors import.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrNotConfigured       = errors.New("not configured")

	// ErrAmbiguous means a lookup that allows at most one match found more.
	ErrAmbiguous = errors.New("ambiguous match")
)

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool       { return errors.Is(err, ErrAlreadyExists) }
func IsValidationError(err error) bool     { return errors.Is(err, ErrInvalidInput) }
func IsUnauthorized(err error) bool        { return errors.Is(err, ErrUnauthorized) }
func IsRateLimited(err error) bool         { return errors.Is(err, ErrRateLimited) }
func IsUpstreamUnavailable(err error) bool { return errors.Is(err, ErrUpstreamUnavailable) }
func IsNotConfigured(err error) bool       { return errors.Is(err, ErrNotConfigured) }

func messageOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

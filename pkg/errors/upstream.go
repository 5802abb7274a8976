package errors

import (
	"fmt"
	"net/http"
)

// APIError is a failed call to Apiary, Keycloak, Ramp, Google Workspace or
// HubSpot. The status code decides which sentinel it matches.
type APIError struct {
	System     string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

func NewAPIError(system string, statusCode int, message string) *APIError {
	return &APIError{System: system, StatusCode: statusCode, Message: message}
}

// WrapAPI returns nil when err is nil. A zero status means the request never
// got a response.
func WrapAPI(system string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{System: system, StatusCode: statusCode, Message: err.Error(), Err: err}
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.System, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.System, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool {
	var kind error
	switch code := e.StatusCode; {
	case code == http.StatusNotFound:
		kind = ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = ErrUnauthorized
	case code == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case code >= http.StatusInternalServerError:
		kind = ErrUpstreamUnavailable
	default:
		return false
	}
	return target == kind
}

// AuthenticationError means credentials for a system could not be obtained
// or were rejected.
type AuthenticationError struct {
	System  string
	Method  string
	Message string
	Err     error
}

func NewAuthenticationError(system, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{System: system, Method: method, Message: message, Err: err}
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: %s authentication failed: %s", e.System, e.Method, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrUnauthorized }

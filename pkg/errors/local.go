package errors

import "fmt"

// ValidationError rejects bad input before anything is written.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// WrapValidation returns nil when err is nil.
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// ConfigError is returned when a client or setting needed by an operation
// is missing. Procedures whose client is not configured fail with one.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Component == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Component, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrNotConfigured }

// ParseError is a payload that could not be decoded.
type ParseError struct {
	Format  string
	File    string
	Message string
	Err     error
}

func NewParseError(format, file, message string, err error) *ParseError {
	return &ParseError{Format: format, File: file, Message: message, Err: err}
}

// WrapParse returns nil when err is nil.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("decode %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("decode %s %s: %s", e.Format, e.File, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IOError is a failed read or write of a local file.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

// WrapIO returns nil when err is nil.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Operation, e.Path, messageOf(e.Err))
}

func (e *IOError) Unwrap() error { return e.Err }

// ProcedureError is a fatal error that stopped a reconciliation procedure.
// Subject names the entity being processed when it happened, if any.
type ProcedureError struct {
	Procedure string
	Subject   string
	Err       error
}

func NewProcedureError(procedure, subject string, err error) *ProcedureError {
	return &ProcedureError{Procedure: procedure, Subject: subject, Err: err}
}

func (e *ProcedureError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s failed: %v", e.Procedure, e.Err)
	}
	return fmt.Sprintf("%s failed on %s: %v", e.Procedure, e.Subject, e.Err)
}

func (e *ProcedureError) Unwrap() error { return e.Err }

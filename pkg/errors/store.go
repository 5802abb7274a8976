package errors

import "fmt"

// NotFoundError is returned when a directory entry or remote account does
// not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is returned when a save would take a username, external ID,
// occupant or managed team that already belongs to another row.
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func NewConflictError(resource, field, value string) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s %q is already taken", e.Resource, e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrAlreadyExists }

// ResourceError records which store operation failed on which row.
type ResourceError struct {
	Operation string
	Resource  string
	ID        string
	Err       error
}

// WrapResource returns nil when err is nil.
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Err: err}
}

func (e *ResourceError) Error() string {
	subject := e.Resource
	if e.ID != "" {
		subject += " " + e.ID
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, subject, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports input that violates a domain constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NotFoundError reports a reference to a guest or reservation that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports an operation refused because of existing state.
type ConflictError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

// ExternalServiceError wraps a failure of a collaborator outside the process.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// TemplateError reports a message template that cannot be rendered.
type TemplateError struct {
	Reason  string
	Unknown []string
}

func (e *TemplateError) Error() string {
	if len(e.Unknown) == 0 {
		return "template: " + e.Reason
	}
	return "template: " + e.Reason + ": " + strings.Join(e.Unknown, ", ")
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var v *ConflictError
	return errors.As(err, &v)
}

func IsExternal(err error) bool {
	var v *ExternalServiceError
	return errors.As(err, &v)
}

func IsTemplate(err error) bool {
	var v *TemplateError
	return errors.As(err, &v)
}

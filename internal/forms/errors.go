package forms

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the lifecycle operations. Authorization failures are
// deliberately distinct from not-found: once a document is known to exist,
// a caller without access gets ErrForbidden, never ErrNotFound.
var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("form not found")

	// ErrUpstream marks failures of the organisation directory on
	// authorization-relevant calls. These fail the whole operation.
	ErrUpstream = errors.New("upstream dependency failure")
)

// FieldError is a single structured validation failure: the offending
// field path and a message key the client can translate.
type FieldError struct {
	Field      string `json:"field"`
	MessageKey string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.MessageKey
}

// ValidationError aggregates all field failures for one payload. Reported
// to the caller with field-level detail, never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, messageKey string) {
	e.Fields = append(e.Fields, FieldError{Field: field, MessageKey: messageKey})
}

func (e *ValidationError) addf(messageKey, fieldFormat string, args ...any) {
	e.add(fmt.Sprintf(fieldFormat, args...), messageKey)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

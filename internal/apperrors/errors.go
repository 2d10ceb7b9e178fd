// Package apperrors defines the error taxonomy shared by every component.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an error by how callers must react to it
type Kind string

const (
	// KindValidation is a rejection before any I/O happened
	KindValidation Kind = "validation"
	// KindPersistence is a failed local read or write
	KindPersistence Kind = "persistence"
	// KindRemote is a failed push or pull against the remote store
	KindRemote Kind = "remote"
	// KindSigning is an unavailable key or a failed crypto operation
	KindSigning Kind = "signing"
	// KindIntegrity is a chain, hash or reference inconsistency
	KindIntegrity Kind = "integrity"
)

// Error carries the kind and the operation that failed
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation name
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation wraps a pre-I/O rejection
func Validation(op string, err error) error { return New(KindValidation, op, err) }

// Validationf builds a validation error from a format string
func Validationf(op, format string, args ...any) error {
	return New(KindValidation, op, fmt.Errorf(format, args...))
}

// Persistence wraps a local storage failure
func Persistence(op string, err error) error { return New(KindPersistence, op, err) }

// Remote wraps a remote store failure
func Remote(op string, err error) error { return New(KindRemote, op, err) }

// Signing wraps a key or signature failure
func Signing(op string, err error) error { return New(KindSigning, op, err) }

// Integrity wraps a detected inconsistency
func Integrity(op string, err error) error { return New(KindIntegrity, op, err) }

// KindOf returns the kind of the outermost classified error, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ValidationFields flattens validator errors into field -> failed tag.
// Returns nil when err does not come from the validator.
func ValidationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		fields[ve.Field()] = ve.Tag()
	}
	return fields
}

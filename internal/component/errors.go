package component

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/komponente/internal/store"
)

// Error categories returned by Service. Match with errors.Is.
var (
	ErrNotFound    = errors.New("component not found")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("dependency unavailable")
	ErrConflict    = errors.New("concurrent modification")
)

// ValidationError describes a rejected field value.
type ValidationError struct {
	Field   string
	Message string

	// MinQty is the lowest acceptable quantity when the rejection is about
	// units that are checked out.
	MinQty *int
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors collects several field errors.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is makes ValidationErrors match ErrValidation.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// unavailable marks an infrastructure failure. Context errors pass through
// untouched so callers can tell cancellation apart from outages.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// retryable reports whether a transaction failed only because another writer
// got there first.
func retryable(err error) bool {
	return errors.Is(err, store.ErrVersionConflict) || store.IsLockContention(err)
}

// classify turns an error from a transaction body into a Service error.
// Domain errors are returned as is; anything else is an outage.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return err
	case retryable(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return unavailable(op, err)
}

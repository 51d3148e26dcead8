// Package perr defines the error kinds produced by the payment channel
// engine. Callers use errors.Is/errors.As against the exported Kind values
// instead of matching on message text.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed. It is never used as the sole
// error value - it is always wrapped with context via New or Wrap.
type Kind string

const (
	// NotFound - channel or payment unknown locally.
	NotFound Kind = "not_found"
	// InvalidState - operation not allowed from the current on-chain state.
	InvalidState Kind = "invalid_state"
	// InsufficientCapacity - remaining channel value is below the requested price.
	InsufficientCapacity Kind = "insufficient_capacity"
	// InvalidPayment - signature, monotonicity or identity mismatch on a promise.
	InvalidPayment Kind = "invalid_payment"
	// Conflict - a second channel-open was observed for a pair already locked.
	Conflict Kind = "conflict"
	// ChainError - the on-chain transaction reverted, dropped or timed out.
	ChainError Kind = "chain_error"
	// StorageError - a durability failure in a repository.
	StorageError Kind = "storage_error"
)

// Error wraps a Kind with a descriptive message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, perr.NotFound) work by comparing kinds, not identity.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind, preserving cause for Unwrap.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Of builds a sentinel of a given kind, used as the target for errors.Is checks.
func Of(kind Kind) error {
	return &Error{Kind: kind}
}

// Is reports whether err (or any error in its chain) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

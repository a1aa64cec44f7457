package docstore

import (
	"errors"
	"fmt"
)

// Store-level error classes. Adapters wrap driver errors with one of these so
// the reconciliation driver can decide between retry, skip and abort.
var (
	// ErrPreconditionFailed means a concurrent writer changed the document
	// between read and conditional write.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrTransient covers timeouts, throttling and dropped connections.
	ErrTransient = errors.New("transient store error")
	// ErrFatal covers permission and configuration problems; retrying
	// within the same run cannot help.
	ErrFatal = errors.New("fatal store error")
	// ErrInvalidCursor is returned for cursors not produced by the store.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Transient wraps err as a transient store error.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Fatal wraps err as a fatal store error.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }

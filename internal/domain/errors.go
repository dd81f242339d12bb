package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of them.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrAllocationExhausted = errors.New("id allocation exhausted")
	ErrSyncFailure         = errors.New("sync failure")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrDuplicateUser       = errors.New("duplicate user")
	ErrUnavailable         = errors.New("resource unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("unauthorized")

	ErrInvalidRange   = fmt.Errorf("%w: invalid range", ErrValidation)
	ErrAmountMismatch = fmt.Errorf("%w: amount mismatch", ErrValidation)
)

// Error carries a caller-facing message for a kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// StoreError wraps a row store I/O failure.
func StoreError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %v", ErrStoreUnavailable, op, table, err)
}

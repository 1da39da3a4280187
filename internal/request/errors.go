package request

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get, Update and Delete for an id with no open request.
	ErrNotFound = errors.New("request not found")

	ErrInvalidPayload    = errors.New("invalid request payload")
	ErrUserNotFound      = errors.New("requester not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrBookUnavailable   = errors.New("book is already reserved")
	ErrOwnerMismatch     = errors.New("owner does not hold the book")
	ErrRequesterMismatch = errors.New("requester does not match caller")
	ErrSelfRequest       = errors.New("cannot request own book")

	// errQuotaExhausted aborts the create transaction; Create turns it into a nil result.
	errQuotaExhausted = errors.New("quota exhausted")
)

// StorageError wraps a persistence failure. The engine does not retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("request %s: storage: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

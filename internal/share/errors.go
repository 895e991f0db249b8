package share

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch         = errors.New("no files uploaded")
	ErrShareCodeExhausted = errors.New("unable to generate unique share code")
	ErrNotFound           = errors.New("share not found")
	ErrExpired            = errors.New("share expired")
	ErrInvalidCode        = errors.New("invalid share code")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrStorageRead        = errors.New("storage read failed")
)

// StorageError records a failed object store or index operation.
// errors.Is matches both the underlying cause and ErrStorageWrite or
// ErrStorageRead depending on the direction of the operation.
type StorageError struct {
	Op    string // e.g. "put", "get", "presign", "put_record"
	Key   string
	Write bool
	Err   error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() []error {
	kind := ErrStorageRead
	if e.Write {
		kind = ErrStorageWrite
	}
	return []error{kind, e.Err}
}

func writeErr(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Write: true, Err: err}
}

func readErr(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

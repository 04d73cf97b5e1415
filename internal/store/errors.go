package store

import (
	"github.com/pkg/errors"
)

// ErrStorage matches every failure of the underlying medium, including a
// stored blob that no longer decodes.
var ErrStorage = errors.New("storage failure")

var errClosed = errors.New("store closed")

// Error describes a failed store operation on one key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "store " + e.Op + ": " + e.Err.Error()
	}
	return "store " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrStorage }

func fail(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: errors.WithStack(err)}
}

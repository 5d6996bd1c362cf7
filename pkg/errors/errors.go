// Package errors defines the sentinel error taxonomy shared by the index,
// segment, and distribution layers, plus an OpError wrapper that records the
// failing operation and index location.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue reports a field value or query that cannot be encoded
	// per its field descriptor. The operation that produced it has no effect
	// on index state.
	ErrInvalidValue = errors.New("invalid value")

	// ErrLockHeld reports that the exclusive write lock for an index
	// directory is held by another writer.
	ErrLockHeld = errors.New("write lock held")

	// ErrCorrupted reports a segment that failed an integrity check on open.
	ErrCorrupted = errors.New("segment corrupted")

	// ErrFutureVersion reports a commit or segment written by a newer format
	// version than this build supports.
	ErrFutureVersion = errors.New("unsupported future format version")

	// ErrNotFound reports an unknown document id on a strict write/delete
	// path. Read paths return empty results instead.
	ErrNotFound = errors.New("not found")

	// ErrClosed reports an operation on a closed writer or searcher.
	ErrClosed = errors.New("already closed")

	// ErrShardUnavailable reports a shard that could not be reached during
	// distributed fan-out.
	ErrShardUnavailable = errors.New("shard unavailable")

	// ErrTimeout reports a remote call that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// OpError wraps a sentinel with the operation name and index location.
type OpError struct {
	Op   string
	Dir  string
	Err  error
	Info string
}

func (e *OpError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Dir, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Dir, e.Err, e.Info)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// New builds an OpError around a sentinel.
func New(op, dir string, sentinel error, info string) *OpError {
	return &OpError{Op: op, Dir: dir, Err: sentinel, Info: info}
}

// Newf builds an OpError with a formatted info message.
func Newf(op, dir string, sentinel error, format string, args ...any) *OpError {
	return &OpError{Op: op, Dir: dir, Err: sentinel, Info: fmt.Sprintf(format, args...)}
}

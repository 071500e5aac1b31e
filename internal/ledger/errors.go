package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by operations called before Initialize.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrEmptyDigest is returned by Append when the file hash is empty.
	ErrEmptyDigest = errors.New("file hash is empty")

	// ErrOutOfRange is returned by Get for an index outside the chain.
	ErrOutOfRange = errors.New("block index out of range")
)

// PersistenceError reports a failed snapshot read or write. The in-memory
// chain is unchanged when Append returns one.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

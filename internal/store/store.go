// Package store defines the persistence contract for the ledger snapshot.
//
// A Store holds exactly one ordered chain. Save replaces the whole snapshot;
// backends must make the replacement atomic so that a failed or interrupted
// Save leaves the previous snapshot readable.
package store

import (
	"context"
	"errors"

	"github.com/jmerrifield20/recordchain/internal/chain"
)

// ErrNotFound is returned by Load when no snapshot has been written yet.
var ErrNotFound = errors.New("snapshot not found")

// Store persists the full ordered chain.
type Store interface {
	// Load returns the persisted chain in index order, or ErrNotFound.
	Load(ctx context.Context) ([]chain.Record, error)

	// Save replaces the persisted chain with records.
	Save(ctx context.Context, records []chain.Record) error
}

// Package memory is an in-process Store for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/store"
)

// Store keeps the snapshot in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []chain.Record
	saved   bool
	saves   int
}

// New returns an empty Store.
func New() *Store { return &Store{} }

// Load implements store.Store.
func (s *Store) Load(_ context.Context) ([]chain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return nil, store.ErrNotFound
	}
	out := make([]chain.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Save implements store.Store.
func (s *Store) Save(_ context.Context, records []chain.Record) error {
	cp := make([]chain.Record, len(records))
	copy(cp, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cp
	s.saved = true
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

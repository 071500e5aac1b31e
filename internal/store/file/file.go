// Package file stores the ledger snapshot as a single human-readable JSON
// array on local disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/store"
)

// Store reads and writes one snapshot file.
type Store struct {
	path string
}

// New returns a Store for path, creating its parent directory if needed.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("snapshot path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

// Load implements store.Store.
func (s *Store) Load(_ context.Context) ([]chain.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// Save implements store.Store. The snapshot is written to a temporary file
// in the same directory, synced, and renamed over the target, so readers see
// either the old snapshot or the new one.
func (s *Store) Save(_ context.Context, records []chain.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	return WriteAtomic(s.path, data)
}

// Encode renders records in the snapshot format: a JSON array indented with
// four spaces.
func Encode(records []chain.Record) ([]byte, error) {
	if records == nil {
		records = []chain.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot document.
func Decode(data []byte) ([]chain.Record, error) {
	var records []chain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}

// WriteAtomic replaces path with data using write-temp, fsync, rename.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	// Once the rename succeeds this is a no-op.
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return syncDir(dir)
}

// syncDir makes the rename durable. Some platforms cannot fsync a
// directory, so a failed Sync is ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open snapshot dir: %w", err)
	}
	defer d.Close()
	d.Sync() //nolint:errcheck
	return nil
}

// Package postgres persists the ledger in a PostgreSQL table, one row per block.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/store"
)

// advisoryLockKey serialises writers across processes sharing a database.
// Any stable value works as long as every instance uses the same one.
const advisoryLockKey = int64(1_702_114_877)

const table = "ledger_blocks"

var columns = []string{"idx", "timestamp", "file_hash", "previous_hash", "hash"}

// Store is a store.Store backed by the ledger_blocks table.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a Store using pool. The schema is created by cmd/migrate.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) ([]chain.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, timestamp, file_hash, previous_hash, hash
		 FROM ledger_blocks ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var records []chain.Record
	for rows.Next() {
		var r chain.Record
		var ts float64
		if err := rows.Scan(&r.Index, &ts, &r.FileHash, &r.PreviousHash, &r.Hash); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		r.Timestamp = chain.Timestamp(ts)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	if len(records) == 0 {
		return nil, store.ErrNotFound
	}
	return records, nil
}

// Save implements store.Store. Inside one transaction it reads the stored
// tail; if records extends the stored chain only the new rows are copied in,
// otherwise the table is replaced. Either way the change commits atomically.
func (s *Store) Save(ctx context.Context, records []chain.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var tailIdx int
	var tailHash string
	err = tx.QueryRow(ctx,
		"SELECT idx, hash FROM ledger_blocks ORDER BY idx DESC LIMIT 1",
	).Scan(&tailIdx, &tailHash)
	stored := 0
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read ledger tail: %w", err)
	default:
		stored = tailIdx + 1
	}

	from := 0
	if stored > 0 && stored <= len(records) && records[stored-1].Hash == tailHash {
		from = stored
	} else if stored > 0 {
		if _, err := tx.Exec(ctx, "DELETE FROM ledger_blocks"); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
	}

	tail := records[from:]
	if len(tail) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns,
			pgx.CopyFromSlice(len(tail), func(i int) ([]any, error) {
				r := tail[i]
				return []any{r.Index, float64(r.Timestamp), r.FileHash, r.PreviousHash, r.Hash}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy ledger rows: %w", err)
		}
		if int(n) != len(tail) {
			return fmt.Errorf("copy ledger rows: wrote %d of %d", n, len(tail))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	s.logger.Debug("ledger rows saved",
		zap.Int("written", len(tail)),
		zap.Int("total", len(records)),
	)
	return nil
}

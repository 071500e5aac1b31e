// Package journal persists the ledger as an append-only record log with
// periodic compaction into a snapshot file.
//
// Each Save appends only the records that are not yet durable, one JSON
// object per line, and fsyncs the log. Every CompactEvery records the whole
// chain is written to the snapshot (in the same format as the file store)
// and the log is truncated. Load reads the snapshot and replays the log on
// top of it, skipping records the snapshot already holds and ignoring a torn
// final line left by an interrupted write.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/store"
	"github.com/jmerrifield20/recordchain/internal/store/file"
)

const (
	snapshotName = "blockchain.json"
	logName      = "blockchain.log"

	// DefaultCompactEvery is used when Config.CompactEvery is zero.
	DefaultCompactEvery = 1000
)

// Config configures a journal Store.
type Config struct {
	Dir          string
	CompactEvery int
}

// Store is a journal-backed store.Store.
type Store struct {
	mu           sync.Mutex
	snapshot     *file.Store
	logPath      string
	compactEvery int
	logger       *zap.Logger

	persisted    int    // records durable across snapshot + log
	lastHash     string // hash of record persisted-1
	sinceCompact int
	dirty        bool // log may end in torn or unterminated bytes
}

// New creates a journal Store rooted at cfg.Dir.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("journal dir is empty")
	}
	if cfg.CompactEvery <= 0 {
		cfg.CompactEvery = DefaultCompactEvery
	}
	snap, err := file.New(filepath.Join(cfg.Dir, snapshotName))
	if err != nil {
		return nil, err
	}
	return &Store{
		snapshot:     snap,
		logPath:      filepath.Join(cfg.Dir, logName),
		compactEvery: cfg.CompactEvery,
		logger:       logger,
	}, nil
}

// SnapshotPath returns the location of the compacted snapshot.
func (s *Store) SnapshotPath() string { return s.snapshot.Path() }

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) ([]chain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.snapshot.Load(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	foundSnapshot := err == nil

	replayed, foundLog, err := s.replay(records)
	if err != nil {
		return nil, err
	}
	if !foundSnapshot && !foundLog {
		return nil, store.ErrNotFound
	}

	s.remember(replayed)
	s.sinceCompact = len(replayed) - len(records)
	return replayed, nil
}

// replay appends the log's records to base.
func (s *Store) replay(base []chain.Record) ([]chain.Record, bool, error) {
	f, err := os.Open(s.logPath)
	if errors.Is(err, os.ErrNotExist) {
		return base, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	records := base
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, readErr := r.ReadBytes('\n')
		if readErr == io.EOF && len(line) > 0 {
			// No trailing newline: appending would merge the next record
			// into this line, so the next save compacts instead.
			s.dirty = true
		}
		if len(bytes.TrimSpace(line)) > 0 {
			var rec chain.Record
			if err := json.Unmarshal(line, &rec); err != nil {
				if readErr == io.EOF {
					s.logger.Warn("journal: ignoring torn final record", zap.Int("line", lineNo))
					break
				}
				return nil, true, fmt.Errorf("decode journal line %d: %w", lineNo, err)
			}
			switch {
			case rec.Index < len(records):
				// Already folded into the snapshot by a compaction that
				// did not get to truncate the log.
			case rec.Index == len(records):
				records = append(records, rec)
			default:
				return nil, true, fmt.Errorf("journal line %d: index %d follows %d records", lineNo, rec.Index, len(records))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, true, fmt.Errorf("read journal: %w", readErr)
		}
	}
	return records, true, nil
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, records []chain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty || !s.extends(records) {
		return s.compact(ctx, records)
	}

	tail := records[s.persisted:]
	if len(tail) == 0 {
		return nil
	}
	if err := s.appendLog(tail); err != nil {
		return err
	}
	s.remember(records)
	s.sinceCompact += len(tail)

	if s.sinceCompact >= s.compactEvery {
		if err := s.compact(ctx, records); err != nil {
			// The records are durable in the log; compaction is retried on
			// the next Save.
			s.logger.Warn("journal: compaction failed", zap.Error(err))
		}
	}
	return nil
}

// extends reports whether records is the persisted chain plus zero or more
// new records.
func (s *Store) extends(records []chain.Record) bool {
	if len(records) < s.persisted {
		return false
	}
	if s.persisted == 0 {
		return true
	}
	return records[s.persisted-1].Hash == s.lastHash
}

func (s *Store) appendLog(tail []chain.Record) error {
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}
	size := info.Size()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range tail {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode journal record: %w", err)
		}
	}

	_, werr := f.Write(buf.Bytes())
	if werr == nil {
		werr = f.Sync()
	}
	if werr != nil {
		if err := f.Truncate(size); err != nil {
			s.dirty = true
			s.logger.Error("journal: rollback failed, next save compacts", zap.Error(err))
		}
		return fmt.Errorf("append journal: %w", werr)
	}
	return nil
}

// compact writes records as the snapshot and empties the log.
func (s *Store) compact(ctx context.Context, records []chain.Record) error {
	if err := s.snapshot.Save(ctx, records); err != nil {
		return err
	}
	if err := os.Truncate(s.logPath, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		// Replay skips records the snapshot already holds.
		s.logger.Warn("journal: truncate after compaction", zap.Error(err))
	}
	s.remember(records)
	s.sinceCompact = 0
	s.dirty = false
	s.logger.Debug("journal compacted", zap.Int("records", len(records)))
	return nil
}

func (s *Store) remember(records []chain.Record) {
	s.persisted = len(records)
	if len(records) > 0 {
		s.lastHash = records[len(records)-1].Hash
	} else {
		s.lastHash = ""
	}
}

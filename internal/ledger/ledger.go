package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/digest"
	"github.com/jmerrifield20/recordchain/internal/store"
)

// VerifyMode controls what Initialize does with a loaded snapshot.
type VerifyMode int

const (
	// VerifyWarn verifies the snapshot and logs a warning on failure, but
	// still serves it.
	VerifyWarn VerifyMode = iota
	// VerifyOff adopts the snapshot without checking it.
	VerifyOff
	// VerifyStrict refuses to initialise from a snapshot that fails verification.
	VerifyStrict
)

// ParseVerifyMode maps "off", "warn", and "strict" to a VerifyMode.
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch s {
	case "", "warn":
		return VerifyWarn, nil
	case "off":
		return VerifyOff, nil
	case "strict":
		return VerifyStrict, nil
	}
	return VerifyWarn, fmt.Errorf("unknown verify mode %q (want off, warn, or strict)", s)
}

func (m VerifyMode) String() string {
	switch m {
	case VerifyOff:
		return "off"
	case VerifyStrict:
		return "strict"
	default:
		return "warn"
	}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAlgorithm sets the digest used to build block hashes. Default SHA256.
func WithAlgorithm(alg digest.Algorithm) Option {
	return func(l *Ledger) { l.alg = alg }
}

// WithVerifyMode sets the load-time verification policy. Default VerifyWarn.
func WithVerifyMode(m VerifyMode) Option {
	return func(l *Ledger) { l.verify = m }
}

// WithClock overrides the wall clock; used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the process-wide, append-only chain. It is safe for concurrent use.
//
// writeMu serialises Initialize, Append, and Flush, including their store
// I/O. mu guards only the blocks slice header, so readers wait for the swap,
// never for the store. The slice a reader observes is never modified in place.
type Ledger struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	blocks  []chain.Block

	store  store.Store
	alg    digest.Algorithm
	verify VerifyMode
	now    func() time.Time
	logger *zap.Logger
}

// New creates an uninitialised Ledger backed by st.
func New(st store.Store, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  st,
		alg:    digest.SHA256,
		verify: VerifyWarn,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Algorithm returns the digest used for block hashes.
func (l *Ledger) Algorithm() digest.Algorithm { return l.alg }

// Initialize loads the snapshot, or creates and persists a genesis block when
// none exists. An empty snapshot is treated as missing. Calling Initialize on
// an initialised Ledger does nothing.
func (l *Ledger) Initialize(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.snapshot() != nil {
		return nil
	}

	records, err := l.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return &PersistenceError{Op: "load", Err: err}
	}

	if len(records) > 0 {
		if err := l.checkLoaded(records); err != nil {
			return err
		}
		blocks := make([]chain.Block, len(records))
		for i, r := range records {
			blocks[i] = chain.Restore(r)
		}
		l.publish(blocks)
		l.logger.Info("ledger loaded",
			zap.Int("blocks", len(blocks)),
			zap.String("root", blocks[len(blocks)-1].Hash()),
		)
		return nil
	}

	genesis := chain.Genesis(l.alg, chain.FromTime(l.now()))
	blocks := []chain.Block{genesis}
	if err := l.store.Save(ctx, chain.Records(blocks)); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	l.publish(blocks)
	l.logger.Info("ledger created with genesis block", zap.String("hash", genesis.Hash()))
	return nil
}

func (l *Ledger) checkLoaded(records []chain.Record) error {
	if l.verify == VerifyOff {
		return nil
	}
	err := chain.Verify(l.alg, records)
	if err == nil {
		return nil
	}
	if l.verify == VerifyStrict {
		return fmt.Errorf("refusing snapshot: %w", err)
	}
	l.logger.Warn("ledger snapshot failed integrity check; serving it anyway", zap.Error(err))
	return nil
}

// Append records fileHash in a new block linked to the current tail and
// returns the block's record. The new chain is persisted before it is
// published; if the store fails, the ledger is left unchanged and a
// *PersistenceError is returned.
func (l *Ledger) Append(ctx context.Context, fileHash string) (chain.Record, error) {
	if fileHash == "" {
		return chain.Record{}, ErrEmptyDigest
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	blocks := l.snapshot()
	if blocks == nil {
		return chain.Record{}, ErrNotInitialized
	}

	last := blocks[len(blocks)-1]
	ts := chain.FromTime(l.now())
	if ts < last.Timestamp() {
		// The wall clock stepped back; keep timestamps non-decreasing.
		ts = last.Timestamp()
	}
	block := chain.New(l.alg, len(blocks), ts, fileHash, last.Hash())

	next := make([]chain.Block, len(blocks), len(blocks)+1)
	copy(next, blocks)
	next = append(next, block)

	if err := l.store.Save(ctx, chain.Records(next)); err != nil {
		l.logger.Error("ledger append not persisted",
			zap.Int("index", block.Index()),
			zap.Error(err),
		)
		return chain.Record{}, &PersistenceError{Op: "save", Err: err}
	}
	l.publish(next)

	l.logger.Debug("ledger block appended",
		zap.Int("index", block.Index()),
		zap.String("file_hash", fileHash),
		zap.String("hash", block.Hash()),
	)
	return block.Record(), nil
}

func (l *Ledger) snapshot() []chain.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks
}

func (l *Ledger) publish(blocks []chain.Block) {
	l.mu.Lock()
	l.blocks = blocks
	l.mu.Unlock()
}

// List returns a copy of the full chain in index order.
func (l *Ledger) List(_ context.Context) []chain.Record {
	return chain.Records(l.snapshot())
}

// Get returns the block at the given zero-based index.
func (l *Ledger) Get(_ context.Context, index int) (chain.Record, error) {
	blocks := l.snapshot()
	if index < 0 || index >= len(blocks) {
		return chain.Record{}, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	return blocks[index].Record(), nil
}

// Len returns the number of blocks, including genesis.
func (l *Ledger) Len(_ context.Context) int {
	return len(l.snapshot())
}

// Root returns the hash of the most recent block, or "" before Initialize.
func (l *Ledger) Root(_ context.Context) string {
	blocks := l.snapshot()
	if len(blocks) == 0 {
		return ""
	}
	return blocks[len(blocks)-1].Hash()
}

// Verify checks the whole in-memory chain. It returns a *chain.IntegrityError
// describing the first bad block, or nil when the chain is intact.
func (l *Ledger) Verify(ctx context.Context) error {
	records := l.List(ctx)
	if len(records) == 0 {
		return ErrNotInitialized
	}
	return chain.Verify(l.alg, records)
}

// VerifyStore re-reads the persisted snapshot and checks it on its own and
// against the served chain, so edits made to the store behind the process's
// back are caught without a restart. The store may be one block ahead of
// memory while an Append is being published.
func (l *Ledger) VerifyStore(ctx context.Context) error {
	served := l.snapshot()
	if served == nil {
		return ErrNotInitialized
	}
	records, err := l.store.Load(ctx)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}
	if err := chain.Verify(l.alg, records); err != nil {
		return err
	}
	if len(records) < len(served) {
		return &chain.IntegrityError{Index: len(records), Reason: "block missing from store"}
	}
	for i, b := range served {
		if records[i].Hash != b.Hash() {
			return &chain.IntegrityError{Index: i, Reason: "stored block differs from served block"}
		}
	}
	return nil
}

// Flush rewrites the current chain to the store. It is called once at
// shutdown; every successful Append has already persisted its block.
func (l *Ledger) Flush(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	blocks := l.snapshot()
	if blocks == nil {
		return nil
	}
	if err := l.store.Save(ctx, chain.Records(blocks)); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Package audit re-verifies the ledger on a fixed interval so tampering with
// the persisted chain is reported while the server is running, not only at
// the next restart.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
)

// Config holds auditor configuration.
type Config struct {
	Interval      time.Duration
	Timeout       time.Duration
	FailThreshold int
}

// Verifier is the part of *ledger.Ledger the auditor needs.
type Verifier interface {
	VerifyStore(ctx context.Context) error
	Len(ctx context.Context) int
}

// MetricsRecordFunc is an optional callback for recording audit results.
type MetricsRecordFunc func(valid bool)

// AlertFunc is an optional callback fired once when consecutive failures
// reach the threshold.
type AlertFunc func(ctx context.Context, err error)

// Result is the outcome of a single audit run.
type Result struct {
	Valid     bool
	Blocks    int
	Index     int // first failing block, -1 when valid or unknown
	Err       error
	CheckedAt time.Time
}

// Auditor runs periodic full-chain verification.
type Auditor struct {
	ledger    Verifier
	cfg       Config
	onMetrics MetricsRecordFunc
	onAlert   AlertFunc
	logger    *zap.Logger

	mu       sync.Mutex
	failures int
	last     Result
}

// New creates a new Auditor.
func New(ledger Verifier, cfg Config, logger *zap.Logger) *Auditor {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 1
	}
	return &Auditor{ledger: ledger, cfg: cfg, logger: logger, last: Result{Index: -1}}
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// SetAlert configures the alert callback.
func (a *Auditor) SetAlert(fn AlertFunc) {
	a.onAlert = fn
}

// Start runs the audit loop until ctx is done.
func (a *Auditor) Start(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			a.Check(runCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check verifies the persisted chain once and returns the result.
func (a *Auditor) Check(ctx context.Context) Result {
	err := a.ledger.VerifyStore(ctx)
	res := Result{
		Valid:     err == nil,
		Blocks:    a.ledger.Len(ctx),
		Index:     -1,
		Err:       err,
		CheckedAt: time.Now().UTC(),
	}
	var ie *chain.IntegrityError
	if errors.As(err, &ie) {
		res.Index = ie.Index
	}

	if a.onMetrics != nil {
		a.onMetrics(res.Valid)
	}

	a.mu.Lock()
	prev := a.failures
	if res.Valid {
		a.failures = 0
	} else {
		a.failures++
	}
	count := a.failures
	a.last = res
	a.mu.Unlock()

	switch {
	case res.Valid && prev >= a.cfg.FailThreshold:
		a.logger.Info("audit: ledger integrity restored", zap.Int("blocks", res.Blocks))
	case res.Valid:
		a.logger.Debug("audit: ledger verified", zap.Int("blocks", res.Blocks))
	case count == a.cfg.FailThreshold:
		a.logger.Error("audit: ledger integrity check failed",
			zap.Int("index", res.Index),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
		if a.onAlert != nil {
			a.onAlert(ctx, err)
		}
	default:
		a.logger.Warn("audit: ledger still failing verification",
			zap.Int("fail_count", count),
			zap.Error(err),
		)
	}
	return res
}

// Last returns the most recent result.
func (a *Auditor) Last() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

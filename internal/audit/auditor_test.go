package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubLedger struct {
	err   error
	calls atomic.Int32
}

func (s *stubLedger) VerifyStore(_ context.Context) error {
	s.calls.Add(1)
	return s.err
}

func (s *stubLedger) Len(_ context.Context) int { return 3 }

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheck_valid(t *testing.T) {
	var recorded []bool
	a := New(&stubLedger{}, Config{}, zap.NewNop())
	a.SetMetricsRecord(func(valid bool) { recorded = append(recorded, valid) })

	res := a.Check(context.Background())
	if !res.Valid || res.Index != -1 || res.Blocks != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(recorded) != 1 || !recorded[0] {
		t.Errorf("metrics = %v, want [true]", recorded)
	}
}

func TestCheck_reportsFailingIndex(t *testing.T) {
	l := &stubLedger{err: &chain.IntegrityError{Index: 2, Reason: "hash mismatch"}}
	a := New(l, Config{}, zap.NewNop())

	res := a.Check(context.Background())
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if res.Index != 2 {
		t.Errorf("index = %d, want 2", res.Index)
	}
	if !errors.Is(res.Err, chain.ErrIntegrity) {
		t.Errorf("err = %v, want ErrIntegrity", res.Err)
	}
	if a.Last().Index != 2 {
		t.Error("Last did not record the failure")
	}
}

func TestCheck_alertsOnceAtThreshold(t *testing.T) {
	l := &stubLedger{err: &chain.IntegrityError{Index: 1, Reason: "broken link"}}
	a := New(l, Config{FailThreshold: 2}, zap.NewNop())

	alerts := 0
	a.SetAlert(func(_ context.Context, _ error) { alerts++ })

	for i := 0; i < 4; i++ {
		a.Check(context.Background())
	}
	if alerts != 1 {
		t.Errorf("alerts = %d, want 1", alerts)
	}

	// Recovery resets the counter so a later failure alerts again.
	l.err = nil
	a.Check(context.Background())
	l.err = &chain.IntegrityError{Index: 1, Reason: "broken link"}
	a.Check(context.Background())
	a.Check(context.Background())
	if alerts != 2 {
		t.Errorf("alerts after recovery = %d, want 2", alerts)
	}
}

func TestStart_stopsOnCancel(t *testing.T) {
	l := &stubLedger{}
	a := New(l, Config{Interval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for l.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("auditor did not run")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

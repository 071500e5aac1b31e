package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/digest"
	"github.com/jmerrifield20/recordchain/internal/store"
	"github.com/jmerrifield20/recordchain/internal/store/file"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grow returns records extended by n linked blocks.
func grow(records []chain.Record, n int) []chain.Record {
	alg := digest.SHA256
	if len(records) == 0 {
		records = []chain.Record{chain.Genesis(alg, 1700000000).Record()}
		n--
	}
	for i := 0; i < n; i++ {
		prev := records[len(records)-1]
		b := chain.New(alg, len(records), prev.Timestamp+1, "file", prev.Hash)
		records = append(records, b.Record())
	}
	return records
}

func newStore(t *testing.T, dir string, every int) *Store {
	t.Helper()
	s, err := New(Config{Dir: dir, CompactEvery: every}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestJournal_LoadEmpty(t *testing.T) {
	s := newStore(t, t.TempDir(), 10)
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJournal_AppendsOnlyTail(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 100)
	ctx := context.Background()

	records := grow(nil, 1)
	require.NoError(t, s.Save(ctx, records))
	records = grow(records, 1)
	require.NoError(t, s.Save(ctx, records))
	records = grow(records, 1)
	require.NoError(t, s.Save(ctx, records))

	data, err := os.ReadFile(filepath.Join(dir, logName))
	require.NoError(t, err)
	assert.Equal(t, 3, countLines(data), "each record should be logged exactly once")

	reopened := newStore(t, dir, 100)
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestJournal_CompactsIntoSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 3)
	ctx := context.Background()

	var records []chain.Record
	for i := 0; i < 4; i++ {
		records = grow(records, 1)
		require.NoError(t, s.Save(ctx, records))
	}

	snap, err := file.New(filepath.Join(dir, snapshotName))
	require.NoError(t, err)
	compacted, err := snap.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, compacted, 3)

	data, err := os.ReadFile(filepath.Join(dir, logName))
	require.NoError(t, err)
	assert.Equal(t, 1, countLines(data))

	got, err := newStore(t, dir, 3).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestJournal_IgnoresTornFinalLine(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 100)
	ctx := context.Background()

	records := grow(nil, 2)
	require.NoError(t, s.Save(ctx, records))

	f, err := os.OpenFile(filepath.Join(dir, logName), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"index":2,"timest`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := newStore(t, dir, 100)
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// The next save rewrites the snapshot and drops the torn bytes.
	records = grow(records, 1)
	require.NoError(t, reopened.Save(ctx, records))
	got, err = newStore(t, dir, 100).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestJournal_UnterminatedFinalLineCompactsOnSave(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 100)
	ctx := context.Background()

	records := grow(nil, 2)
	require.NoError(t, s.Save(ctx, records))

	// Crash after the record bytes but before its newline.
	logPath := filepath.Join(dir, logName)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Equal(t, byte('\n'), data[len(data)-1])
	require.NoError(t, os.WriteFile(logPath, data[:len(data)-1], 0o644))

	reopened := newStore(t, dir, 100)
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	records = grow(records, 1)
	require.NoError(t, reopened.Save(ctx, records))

	got, err = newStore(t, dir, 100).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// Appends resume once the log is clean again.
	records = grow(records, 1)
	require.NoError(t, reopened.Save(ctx, records))
	got, err = newStore(t, dir, 100).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestJournal_SkipsRecordsAlreadyCompacted(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 100)
	ctx := context.Background()

	records := grow(nil, 3)
	require.NoError(t, s.Save(ctx, records))

	// Simulate a crash between writing the snapshot and truncating the log.
	snap, err := file.New(filepath.Join(dir, snapshotName))
	require.NoError(t, err)
	require.NoError(t, snap.Save(ctx, records[:2]))

	got, err := newStore(t, dir, 100).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestJournal_DivergentChainRewrites(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 100)
	ctx := context.Background()

	records := grow(nil, 3)
	require.NoError(t, s.Save(ctx, records))

	other := grow(nil, 1)
	other = append(other, chain.New(digest.SHA256, 1, 1700000005, "other", other[0].Hash).Record())
	require.NoError(t, s.Save(ctx, other))

	got, err := newStore(t, dir, 100).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

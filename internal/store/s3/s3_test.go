package s3

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/digest"
	"github.com/jmerrifield20/recordchain/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isMinIOAvailable skips integration tests when no local MinIO is running.
func isMinIOAvailable(t *testing.T) bool {
	conn, err := net.DialTimeout("tcp", "localhost:9000", time.Second)
	if err != nil {
		t.Log("MinIO not reachable at localhost:9000, skipping")
		return false
	}
	conn.Close()
	return true
}

func TestS3Store_RoundTrip(t *testing.T) {
	if !isMinIOAvailable(t) {
		t.Skip()
	}
	ctx := context.Background()
	s, err := New(ctx, Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "recordchain-test",
		Key:             "snapshots/" + uuid.NewString() + ".json",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	g := chain.Genesis(digest.SHA256, 1700000000)
	want := chain.Records([]chain.Block{g, chain.New(digest.SHA256, 1, 1700000000.75, "abc123", g.Hash())})
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNew_requiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"}, zap.NewNop())
	assert.Error(t, err)
}

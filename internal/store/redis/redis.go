// Package redis keeps the ledger snapshot as a single JSON value in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/store"
	"github.com/jmerrifield20/recordchain/internal/store/file"
)

// DefaultKey is used when Config.Key is empty.
const DefaultKey = "recordchain:snapshot"

// Config configures a Redis Store.
type Config struct {
	URL string // redis://<user>:<password>@<host>:<port>/<db>
	Key string
}

// Store is a store.Store backed by one Redis key. SET replaces the value
// atomically, so readers never see a partial snapshot.
type Store struct {
	client *goredis.Client
	key    string
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) ([]chain.Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}
	return file.Decode(data)
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, records []chain.Record) error {
	data, err := file.Encode(records)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.client.Close() }

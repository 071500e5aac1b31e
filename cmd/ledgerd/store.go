package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/config"
	"github.com/jmerrifield20/recordchain/internal/store"
	"github.com/jmerrifield20/recordchain/internal/store/file"
	"github.com/jmerrifield20/recordchain/internal/store/journal"
	"github.com/jmerrifield20/recordchain/internal/store/memory"
	"github.com/jmerrifield20/recordchain/internal/store/postgres"
	"github.com/jmerrifield20/recordchain/internal/store/redis"
	"github.com/jmerrifield20/recordchain/internal/store/s3"
)

// openStore builds the persistence backend named by ledger.store. The
// returned func releases any connections it opened.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	noop := func() {}

	switch cfg.Ledger.Store {
	case config.StoreFile:
		st, err := file.New(cfg.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return st, noop, nil

	case config.StoreJournal:
		st, err := journal.New(journal.Config{
			Dir:          cfg.Journal.Dir,
			CompactEvery: cfg.Journal.CompactEvery,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("journal store: %w", err)
		}
		return st, noop, nil

	case config.StoreMemory:
		logger.Warn("memory store selected: the chain is lost on restart")
		return memory.New(), noop, nil

	case config.StorePostgres:
		db, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return postgres.New(db, logger), db.Close, nil

	case config.StoreRedis:
		st, err := redis.New(ctx, redis.Config{URL: cfg.Redis.URL, Key: cfg.Redis.Key})
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		logger.Info("connected to redis", zap.String("key", cfg.Redis.Key))
		return st, func() { _ = st.Close() }, nil

	case config.StoreS3:
		st, err := s3.New(ctx, s3.Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Key:             cfg.S3.Key,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("s3 store: %w", err)
		}
		return st, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown ledger.store %q", cfg.Ledger.Store)
}

package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/pipeline"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/fortuna/gridiron/internal/store/repository"
)

// backends holds the optional Postgres and Redis connections.
type backends struct {
	db    *store.Database
	redis *cache.Conn
}

// openBackends connects to whichever of dsn and redisURL are set. Redis is
// retried redisAttempts times.
func openBackends(ctx context.Context, dsn, redisURL string, redisAttempts int, logger logrus.FieldLogger) (*backends, error) {
	b := &backends{}

	if dsn != "" {
		db, err := store.NewDatabase(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.db = db
		logger.Info("✓ Connected to Postgres")

		if err := db.RunMigrations(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("✓ Database migrations applied")
	}

	if redisURL != "" {
		dial := cache.DefaultDialConfig()
		dial.Attempts = redisAttempts
		rc, err := cache.Dial(ctx, redisURL, dial, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.redis = rc
		logger.Info("✓ Connected to Redis")
	}

	return b, nil
}

// sinks returns the build sinks for the open connections: Postgres first,
// then the Redis form cache and the build stream.
func (b *backends) sinks() []pipeline.Sink {
	var sinks []pipeline.Sink
	if b.db != nil {
		sinks = append(sinks, repository.NewFeatureRepository(b.db))
	}
	if b.redis != nil {
		sinks = append(sinks,
			b.redis.Forms(),
			publisher.NewRedisStreamPublisher(b.redis.Client()),
		)
	}
	return sinks
}

func (b *backends) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}

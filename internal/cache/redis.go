package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DialConfig controls how long Dial waits for Redis to accept connections.
type DialConfig struct {
	Attempts    int
	Delay       time.Duration
	PingTimeout time.Duration
}

// DefaultDialConfig suits a one-off build: a few quick tries.
func DefaultDialConfig() DialConfig {
	return DialConfig{Attempts: 3, Delay: 2 * time.Second, PingTimeout: 5 * time.Second}
}

// Conn is the Redis connection shared by the form cache and the build
// stream.
type Conn struct {
	client *redis.Client
}

// Dial parses redisURL and pings until Redis answers or the attempts run
// out. A malformed URL fails immediately.
func Dial(ctx context.Context, redisURL string, cfg DialConfig, logger logrus.FieldLogger) (*Conn, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	client := redis.NewClient(opt)
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return &Conn{client: client}, nil
		}
		if attempt == cfg.Attempts {
			break
		}

		logger.WithError(err).Warnf("Redis connection attempt %d/%d failed (retrying in %v)", attempt, cfg.Attempts, cfg.Delay)
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	client.Close()
	return nil, fmt.Errorf("connect redis after %d attempts: %w", cfg.Attempts, err)
}

// Forms returns the latest-form cache on this connection.
func (c *Conn) Forms() *FeatureCache {
	return NewFeatureCache(c.client)
}

// Client exposes the raw client for the stream publisher.
func (c *Conn) Client() *redis.Client {
	return c.client
}

// HealthCheck implements the REST health checker.
func (c *Conn) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Conn) Close() error {
	return c.client.Close()
}

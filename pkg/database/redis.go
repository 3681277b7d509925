package database

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
)

// NewRedisClient connects the optional report cache. It returns a nil client
// and nil error when no Redis host is configured, and an error when a host is
// configured but does not answer a ping. Callers own the returned client and
// must Close it at shutdown.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping report cache at %s: %w", addr, err)
	}

	return client, nil
}

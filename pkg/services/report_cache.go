package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const reportCachePrefix = "ingest:report"

// ReportCache stores report results for one load run. Keys embed the run ID,
// so a new load or a clear makes earlier entries unreachable.
type ReportCache interface {
	// Get decodes a cached value into dest. It reports whether a value was found.
	Get(ctx context.Context, runID uuid.UUID, key string, dest any) (bool, error)
	Set(ctx context.Context, runID uuid.UUID, key string, value any) error
}

// NewReportCache returns a Redis-backed cache, or a no-op cache when client is nil.
func NewReportCache(client *redis.Client, ttl time.Duration) ReportCache {
	if client == nil {
		return noopReportCache{}
	}
	return &redisReportCache{client: client, ttl: ttl}
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ReportCache = (*redisReportCache)(nil)

func reportCacheKey(runID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:%s:%s", reportCachePrefix, runID, key)
}

func (c *redisReportCache) Get(ctx context.Context, runID uuid.UUID, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, reportCacheKey(runID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read report cache: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return true, nil
}

func (c *redisReportCache) Set(ctx context.Context, runID uuid.UUID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.client.Set(ctx, reportCacheKey(runID, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write report cache: %w", err)
	}
	return nil
}

type noopReportCache struct{}

func (noopReportCache) Get(context.Context, uuid.UUID, string, any) (bool, error) { return false, nil }
func (noopReportCache) Set(context.Context, uuid.UUID, string, any) error         { return nil }

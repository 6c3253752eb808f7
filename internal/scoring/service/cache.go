package service

import (
	"context"
	"encoding/json"
	"time"

	"agency_portal_backend/internal/scoring/transport"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "perf:"

// Cache is a best-effort redis cache for computed performance results.
// Redis being unavailable never fails a computation; misses are silent.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache creates a performance-result cache with the given TTL.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get returns the cached result for the client, if present and decodable.
func (c *Cache) Get(ctx context.Context, clientID uuid.UUID) (transport.PerformanceResponse, bool) {
	if c == nil || c.rdb == nil {
		return transport.PerformanceResponse{}, false
	}

	data, err := c.rdb.Get(ctx, cacheKeyPrefix+clientID.String()).Bytes()
	if err != nil {
		return transport.PerformanceResponse{}, false
	}

	var result transport.PerformanceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return transport.PerformanceResponse{}, false
	}

	return result, true
}

// Set stores the result for the client under the configured TTL.
func (c *Cache) Set(ctx context.Context, clientID uuid.UUID, result transport.PerformanceResponse) {
	if c == nil || c.rdb == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	_ = c.rdb.Set(ctx, cacheKeyPrefix+clientID.String(), data, c.ttl).Err()
}

// Invalidate drops the cached result for the client.
func (c *Cache) Invalidate(ctx context.Context, clientID uuid.UUID) {
	if c == nil || c.rdb == nil {
		return
	}

	_ = c.rdb.Del(ctx, cacheKeyPrefix+clientID.String()).Err()
}

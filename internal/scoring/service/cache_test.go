package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"agency_portal_backend/internal/scoring/transport"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewCache(rdb, ttl)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	clientID := uuid.New()

	if _, ok := cache.Get(context.Background(), clientID); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	stored := transport.PerformanceResponse{
		ClientID: clientID.String(),
		Score:    72,
		PlanType: "seo",
	}
	cache.Set(context.Background(), clientID, stored)

	got, ok := cache.Get(context.Background(), clientID)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if got.Score != 72 || got.ClientID != clientID.String() || got.PlanType != "seo" {
		t.Fatalf("cached result mismatch: %+v", got)
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	clientID := uuid.New()

	cache.Set(context.Background(), clientID, transport.PerformanceResponse{Score: 50})
	cache.Invalidate(context.Background(), clientID)

	if _, ok := cache.Get(context.Background(), clientID); ok {
		t.Fatal("expected a miss after invalidation")
	}
}

func TestCacheKeysAreScopedPerClient(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	first, second := uuid.New(), uuid.New()

	cache.Set(context.Background(), first, transport.PerformanceResponse{Score: 10})
	cache.Set(context.Background(), second, transport.PerformanceResponse{Score: 90})

	got, ok := cache.Get(context.Background(), first)
	if !ok || got.Score != 10 {
		t.Fatalf("first client result mismatch: %+v ok=%v", got, ok)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	clientID := uuid.New()

	cache.Set(context.Background(), clientID, transport.PerformanceResponse{})
	cache.Invalidate(context.Background(), clientID)
	if _, ok := cache.Get(context.Background(), clientID); ok {
		t.Fatal("nil cache should never hit")
	}
}

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	memredis "Memora/backend/go/internal/database/redis"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// URLGuard serializes concurrent ingestions of the same URL by the same user.
type URLGuard interface {
	// Acquire returns a release func when the slot was free, or ok=false when
	// another ingestion of the same URL is already running.
	Acquire(ctx context.Context, userID int64, rawURL string) (release func(), ok bool, err error)
}

func guardKey(userID int64, rawURL string) string {
	return fmt.Sprintf("memora:ingest:%d:%s", userID, URLHash(rawURL))
}

// RedisURLGuard holds the slot with SETNX and a TTL so a crashed process never
// blocks a URL forever.
type RedisURLGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisURLGuard creates a guard backed by Redis.
func NewRedisURLGuard(rdb *redis.Client, ttl time.Duration) *RedisURLGuard {
	return &RedisURLGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisURLGuard) Acquire(ctx context.Context, userID int64, rawURL string) (func(), bool, error) {
	key := guardKey(userID, rawURL)
	token := uuid.NewString()
	ok, err := memredis.TryLock(ctx, g.rdb, key, token, g.ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = memredis.Unlock(ctx, g.rdb, key, token)
	}, true, nil
}

// MemoryURLGuard is the single-process guard used when Redis is not configured.
type MemoryURLGuard struct {
	held sync.Map
}

// NewMemoryURLGuard creates an in-process guard.
func NewMemoryURLGuard() *MemoryURLGuard {
	return &MemoryURLGuard{}
}

func (g *MemoryURLGuard) Acquire(_ context.Context, userID int64, rawURL string) (func(), bool, error) {
	key := guardKey(userID, rawURL)
	if _, loaded := g.held.LoadOrStore(key, struct{}{}); loaded {
		return nil, false, nil
	}
	return func() { g.held.Delete(key) }, true, nil
}

var (
	_ URLGuard = (*RedisURLGuard)(nil)
	_ URLGuard = (*MemoryURLGuard)(nil)
)

package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"Memora/backend/go/internal/config"

	"github.com/go-redis/redis/v8"
)

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// releaseScript 仅当锁仍由调用方持有时才删除它。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// GetClient 使用单例模式初始化并返回一个 Redis 客户端实例。
func GetClient(cfg *config.RedisConfig) (*redis.Client, error) {
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("无法连接到 Redis: %w", err)
			return
		}

		log.Println("✅ 成功连接到 Redis!")
		client = rdb
	})

	return client, initErr
}

// TryLock 使用 SETNX 获取一个带过期时间的锁。
//
// 参数:
//
//	ctx: 上下文。
//	rdb: Redis 客户端。
//	key: 锁的键。
//	token: 持有者标识，释放时用于校验。
//	ttl: 锁的过期时间。
//
// 返回值:
//
//	bool: 是否成功获取锁。
//	error: Redis 调用失败时返回错误。
func TryLock(ctx context.Context, rdb *redis.Client, key, token string, ttl time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取 Redis 锁 '%s' 失败: %w", key, err)
	}
	return ok, nil
}

// Unlock 释放由 token 持有的锁，锁已过期或被他人持有时不做任何操作。
func Unlock(ctx context.Context, rdb *redis.Client, key, token string) error {
	if err := releaseScript.Run(ctx, rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("释放 Redis 锁 '%s' 失败: %w", key, err)
	}
	return nil
}

// Close 安全地关闭单例的 Redis 连接。
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck 检查 Redis 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	return client.Ping(ctx).Err()
}

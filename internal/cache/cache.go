// Package cache кэширует данные, которые панель работника опрашивает каждые несколько секунд.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// UnreadTTL совпадает с интервалом опроса панели работника.
const UnreadTTL = 15 * time.Second

// RedisCache хранит счётчики непрочитанных уведомлений работников в Redis.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache подключается к Redis по URL и проверяет соединение.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCache{rdb: rdb, ttl: UnreadTTL}, nil
}

func unreadKey(workerID int64) string {
	return "worker:unread:" + strconv.FormatInt(workerID, 10)
}

// UnreadCount возвращает закэшированный счётчик. Второе значение false означает промах.
func (c *RedisCache) UnreadCount(ctx context.Context, workerID int64) (int, bool, error) {
	n, err := c.rdb.Get(ctx, unreadKey(workerID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get unread count: %w", err)
	}
	return n, true, nil
}

// SetUnreadCount сохраняет счётчик непрочитанных уведомлений работника.
func (c *RedisCache) SetUnreadCount(ctx context.Context, workerID int64, n int) error {
	if err := c.rdb.Set(ctx, unreadKey(workerID), n, c.ttl).Err(); err != nil {
		return fmt.Errorf("set unread count: %w", err)
	}
	return nil
}

// InvalidateWorker удаляет закэшированные данные работника.
func (c *RedisCache) InvalidateWorker(ctx context.Context, workerID int64) error {
	if err := c.rdb.Del(ctx, unreadKey(workerID)).Err(); err != nil {
		return fmt.Errorf("invalidate worker cache: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Noop используется, когда Redis не настроен: каждый запрос является промахом.
type Noop struct{}

func (Noop) UnreadCount(context.Context, int64) (int, bool, error) { return 0, false, nil }
func (Noop) SetUnreadCount(context.Context, int64, int) error      { return nil }
func (Noop) InvalidateWorker(context.Context, int64) error         { return nil }
func (Noop) Close() error                                          { return nil }

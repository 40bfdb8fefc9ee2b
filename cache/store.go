package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss 键不存在或已过期
	ErrMiss = errors.New("cache: miss")
	// ErrUnavailable wraps any backend failure. Callers skip the cache layer on it.
	ErrUnavailable = errors.New("cache: unavailable")
)

// Store 带过期时间的通用键值缓存，实现必须并发安全
type Store interface {
	// Get 返回值；不存在或 now >= expiresAt 时返回 ErrMiss
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 无条件覆盖；ttl <= 0 表示不过期，直到显式失效
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate 立即删除，键不存在时不报错
	Invalidate(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need an explicit expired-entry purge.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

func expiresAt(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}

package services

import (
	"context"
	"time"

	"ridepool/pkg/cache"
)

// CacheService is the subset of cache operations the repositories use.
// Repositories treat a nil CacheService as "caching disabled".
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

var _ CacheService = (*cache.RedisCache)(nil)

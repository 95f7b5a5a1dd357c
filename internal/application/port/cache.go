package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss ключ отсутствует в кеше
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching operations.
// Used for compliance API responses and run history pages.
type Cache interface {
	// Get retrieves a value from cache; returns ErrCacheMiss when absent
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with the default TTL
	Set(ctx context.Context, key string, value interface{}) error

	// SetWithTTL stores a value with an explicit TTL
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// DeletePattern removes all keys matching pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}

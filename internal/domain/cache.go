package domain

import (
	"context"
	"time"
)

// Cache is the ephemeral storage for recent analyses and counters.
// Analyses live here with a TTL only; there is deliberately no durable
// audit trail. Implemented as a local LRU, Redis, or two-phase LRU+Redis.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetAnalysis retrieves a cached fraud analysis by ID.
	// Returns nil, nil if not present (expired or never cached).
	GetAnalysis(ctx context.Context, analysisID string) (*FraudAnalysis, error)

	// SetAnalysis caches a fraud analysis for read-back by ID.
	SetAnalysis(ctx context.Context, analysisID string, analysis *FraudAnalysis, ttl time.Duration) error

	// IncrementCounter atomically increments a windowed counter and returns
	// the new value. Used for the evaluation tallies surfaced in metrics.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetResolution retrieves a cached resolution result for a root party.
	// Returns nil, nil on miss.
	GetResolution(ctx context.Context, tenantID string, rootID string) (*ResolutionResult, error)

	// SetResolution caches a resolution result for a root party.
	SetResolution(ctx context.Context, tenantID string, rootID string, result *ResolutionResult, ttl time.Duration) error

	// InvalidateResolution drops the cached resolution for a root party.
	// Called when an edge touching the party is written, so reads after a
	// graph mutation are recomputed against the new snapshot.
	InvalidateResolution(ctx context.Context, tenantID string, rootID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis

	// ResolutionTTL bounds how long a cached resolution may serve reads.
	ResolutionTTL time.Duration
}

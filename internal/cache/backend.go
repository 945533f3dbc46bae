// Package cache provides the TTL key/value cache used for generated
// subgraphs and analysis results. A Layer guards any Backend with a
// circuit breaker so cache outages degrade to misses instead of blocking
// callers.
package cache

import (
	"context"
	"time"
)

// Backend is a TTL key/value store holding serialized values. Entries are
// replaced whole; there are no partial writes.
type Backend interface {
	// Get returns the value and whether it was found. A missing or
	// expired key is (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the value under key for the given TTL, replacing any
	// existing entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes the key and reports whether an entry existed.
	Invalidate(ctx context.Context, key string) (bool, error)
}

package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"artgraph-backend/internal/breaker"
	"artgraph-backend/internal/errors"
	"artgraph-backend/internal/observability"
)

// Layer limits mirroring the original service: keys are bounded and
// oversized values are rejected outright, never truncated.
const (
	MaxKeyLength        = 256
	DefaultMaxValueSize = 1 << 20 // 1 MiB
)

// Layer wraps a Backend with a dedicated circuit breaker. Backend
// failures (and an open circuit) degrade reads to misses and writes to
// no-ops: a cache outage slows callers down, it never fails them.
type Layer struct {
	backend      Backend
	breaker      *breaker.Breaker
	maxValueSize int
	logger       *zap.Logger
	metrics      *observability.Collector
}

// NewLayer creates the guarded cache layer. The breaker must be dedicated
// to this layer; metrics may be nil.
func NewLayer(backend Backend, cb *breaker.Breaker, maxValueSize int, logger *zap.Logger, metrics *observability.Collector) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxValueSize <= 0 {
		maxValueSize = DefaultMaxValueSize
	}
	return &Layer{
		backend:      backend,
		breaker:      cb,
		maxValueSize: maxValueSize,
		logger:       logger.Named("cache_layer"),
		metrics:      metrics,
	}
}

// Get returns the cached value and whether it was found. Never returns an
// error: a failing backend is a miss.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	if len(key) == 0 || len(key) > MaxKeyLength {
		return nil, false
	}

	var value []byte
	var found bool
	err := l.breaker.Execute(func() error {
		var err error
		value, found, err = l.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		l.recordError("get", key, err)
		return nil, false
	}
	if l.metrics != nil {
		if found {
			l.metrics.CacheHits.Inc()
		} else {
			l.metrics.CacheMisses.Inc()
		}
	}
	return value, found
}

// Set stores the value under key. Oversized values and invalid keys are
// rejected with a validation error; backend failures are logged and
// swallowed.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(key) == 0 || len(key) > MaxKeyLength {
		return errors.Validation("INVALID_CACHE_KEY",
			fmt.Sprintf("cache key must be 1-%d bytes", MaxKeyLength))
	}
	if len(value) > l.maxValueSize {
		return errors.Validation("CACHE_VALUE_TOO_LARGE",
			fmt.Sprintf("value of %d bytes exceeds cache limit of %d", len(value), l.maxValueSize))
	}

	err := l.breaker.Execute(func() error {
		return l.backend.Set(ctx, key, value, ttl)
	})
	if err != nil {
		l.recordError("set", key, err)
	}
	return nil
}

// Invalidate removes the key, reporting whether an entry existed. Backend
// failures count as "nothing removed".
func (l *Layer) Invalidate(ctx context.Context, key string) bool {
	var removed bool
	err := l.breaker.Execute(func() error {
		var err error
		removed, err = l.backend.Invalidate(ctx, key)
		return err
	})
	if err != nil {
		l.recordError("invalidate", key, err)
		return false
	}
	return removed
}

func (l *Layer) recordError(op, key string, err error) {
	if l.metrics != nil {
		l.metrics.CacheErrors.Inc()
		l.metrics.CacheMisses.Inc()
	}
	if errors.IsCircuitOpen(err) {
		l.logger.Debug("cache circuit open, treating as miss",
			zap.String("operation", op), zap.String("key", key))
		return
	}
	l.logger.Warn("cache operation failed, treating as miss",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

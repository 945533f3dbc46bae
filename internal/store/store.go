// Package store implements the graph store adapter. A Store executes
// parameterized queries against Neo4j over pooled connections with
// bounded retries, per-call timeouts and circuit breaker protection; a
// GraphRepository layers typed node/relationship operations on top.
package store

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"artgraph-backend/internal/breaker"
	"artgraph-backend/internal/errors"
	"artgraph-backend/internal/observability"
)

// Config holds the connection and retry settings for the graph store.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	MaxPoolSize  int
	QueryTimeout time.Duration

	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultConfig mirrors the production defaults: pool of 50 connections,
// 30s query timeout, 3 retry attempts.
func DefaultConfig() Config {
	return Config{
		Database:       "neo4j",
		MaxPoolSize:    50,
		QueryTimeout:   30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
	}
}

// QueryOptions configures a single query execution. Zero values fall back
// to the Store configuration.
type QueryOptions struct {
	// Write selects a write session instead of a read session.
	Write bool
	// Timeout bounds the whole call including retries.
	Timeout time.Duration
	// MaxRetries overrides the configured retry attempt cap.
	MaxRetries int
}

// Executor is the query surface the repositories are built on.
type Executor interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any, opts QueryOptions) ([]map[string]any, error)
}

// Store executes Cypher queries against Neo4j.
type Store struct {
	cfg     Config
	driver  neo4j.DriverWithContext
	breaker *breaker.Breaker
	logger  *zap.Logger
	metrics *observability.Collector
}

// New creates a Store. Connect must be called before use.
func New(cfg Config, cb *breaker.Breaker, logger *zap.Logger, metrics *observability.Collector) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:     cfg,
		breaker: cb,
		logger:  logger.Named("graph_store"),
		metrics: metrics,
	}
}

// Connect establishes the driver and verifies connectivity, retrying with
// exponential backoff.
func (s *Store) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(s.cfg.Username, s.cfg.Password, "")
	configurer := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = s.cfg.MaxPoolSize
		config.ConnectionAcquisitionTimeout = s.cfg.QueryTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(s.cfg.URI, auth, configurer)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				s.driver = driver
				s.logger.Info("connected to graph store",
					zap.String("uri", s.cfg.URI),
					zap.Int("pool_size", s.cfg.MaxPoolSize),
				)
				return nil
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			return errors.Timeout("CONNECT_CANCELLED", "graph store connection cancelled").WithCause(ctx.Err())
		}

		select {
		case <-time.After(s.backoffDelay(attempt)):
		case <-ctx.Done():
			return errors.Timeout("CONNECT_CANCELLED", "graph store connection cancelled").WithCause(ctx.Err())
		}
	}
	return errors.Unavailable("CONNECT_FAILED", "failed to connect to graph store").WithCause(lastErr)
}

// Ping verifies connectivity on the established driver.
func (s *Store) Ping(ctx context.Context) error {
	if s.driver == nil {
		return errors.Unavailable("NOT_CONNECTED", "graph store is not connected")
	}
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return errors.Unavailable("STORE_UNREACHABLE", "graph store is unreachable").WithCause(err)
	}
	return nil
}

// Close releases the driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// ExecuteQuery runs a parameterized Cypher query and returns the rows as
// maps. Transient failures retry with exponential backoff and jitter up to
// the attempt cap, then surface as Unavailable; validation and
// non-transient errors never retry. Each attempt passes through the store
// circuit breaker, and an open circuit fails the call immediately.
func (s *Store) ExecuteQuery(ctx context.Context, query string, params map[string]any, opts QueryOptions) ([]map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("EMPTY_QUERY", "query text must be non-empty")
	}
	if s.driver == nil {
		return nil, errors.Unavailable("NOT_CONNECTED", "graph store driver is not connected")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.QueryTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.cfg.MaxRetries
	}
	mode := "read"
	if opts.Write {
		mode = "write"
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rows []map[string]any
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		start := time.Now()
		err := s.breaker.Execute(func() error {
			var err error
			rows, err = s.runQuery(ctx, query, params, opts.Write)
			return err
		})
		if s.metrics != nil {
			s.metrics.QueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		}
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if s.metrics != nil {
			s.metrics.QueryFailures.WithLabelValues(mode).Inc()
		}

		if errors.IsCircuitOpen(err) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Timeout("QUERY_TIMEOUT", "graph store query deadline exceeded").
				WithOperation("ExecuteQuery").WithCause(ctxErr)
		}
		if !isTransient(err) {
			return nil, errors.Internal("QUERY_FAILED", "graph store query failed").
				WithOperation("ExecuteQuery").WithCause(err)
		}

		delay := s.backoffDelay(attempt)
		s.logger.Warn("transient store error, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.Timeout("QUERY_TIMEOUT", "graph store query deadline exceeded").
				WithOperation("ExecuteQuery").WithCause(ctx.Err())
		}
	}
	return nil, errors.Unavailable("STORE_UNAVAILABLE", "graph store unreachable after retries").
		WithOperation("ExecuteQuery").WithCause(lastErr)
}

// runQuery executes one attempt inside a managed transaction. The session
// is always released, on success, error and timeout alike.
func (s *Store) runQuery(ctx context.Context, query string, params map[string]any, write bool) ([]map[string]any, error) {
	accessMode := neo4j.AccessModeRead
	if write {
		accessMode = neo4j.AccessModeWrite
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   accessMode,
		DatabaseName: s.cfg.Database,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, record := range records {
			rows = append(rows, record.AsMap())
		}
		return rows, nil
	}

	var out any
	var err error
	if write {
		out, err = session.ExecuteWrite(ctx, work)
	} else {
		out, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return nil, err
	}
	return out.([]map[string]any), nil
}

// backoffDelay computes base * 2^attempt with jitter, capped at the
// configured maximum. Jitter comes from the locked package-level source
// because queries retry concurrently.
func (s *Store) backoffDelay(attempt int) time.Duration {
	delay := float64(s.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(s.cfg.RetryMaxDelay); delay > max {
		delay = max
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isTransient reports whether the error is worth retrying: connectivity
// failures and Neo4j transient-class errors.
func isTransient(err error) bool {
	if neo4j.IsConnectivityError(err) {
		return true
	}
	var neoErr *neo4j.Neo4jError
	if stderrors.As(err, &neoErr) {
		return strings.HasPrefix(neoErr.Code, "Neo.TransientError")
	}
	return false
}

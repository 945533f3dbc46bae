// Package breaker wraps sony/gobreaker with the failure semantics used by
// the graph service: trip after a run of consecutive failures inside an
// observation window, stay open for a reset timeout, then let exactly one
// probe through to decide between closing and re-opening.
package breaker

import (
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"artgraph-backend/internal/errors"
)

// Config configures a circuit breaker instance. One instance protects
// exactly one dependency.
type Config struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold uint32
	// Window is how long failure counts accumulate before being reset
	// while the circuit is closed.
	Window time.Duration
	// ResetTimeout is how long the circuit stays open before a single
	// probe call is allowed through.
	ResetTimeout time.Duration
	// OnStateChange, when set, is invoked after every state transition.
	OnStateChange func(dependency, from, to string)
}

// DefaultConfig returns the defaults used for store and cache breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		Window:           30 * time.Second,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker guards calls to a single dependency.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// New creates a breaker. All state transitions are handled atomically by
// gobreaker under its internal mutex.
func New(cfg Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("breaker").With(zap.String("dependency", cfg.Name))

	settings := gobreaker.Settings{
		Name: cfg.Name,
		// Exactly one probe is admitted while half-open; its outcome
		// drives the CLOSED vs re-OPEN decision.
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), logger: logger}
}

// Execute runs fn under breaker protection. While the circuit is open the
// dependency is not invoked and a CircuitOpen error is returned
// immediately.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.CircuitOpen("CIRCUIT_OPEN", "circuit breaker is open for "+b.cb.Name()).
			WithResource(b.cb.Name())
	}
	return err
}

// State returns the current breaker state as a string (closed, half-open,
// open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}

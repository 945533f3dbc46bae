package breaker

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artgraph-backend/internal/errors"
)

var errBackend = stderrors.New("backend down")

func failingCalls(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.Execute(func() error { return errBackend })
	}
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := New(Config{
		Name:             "test",
		FailureThreshold: 5,
		Window:           time.Minute,
		ResetTimeout:     time.Minute,
	}, zap.NewNop())

	failingCalls(b, 4)
	assert.Equal(t, "closed", b.State())

	// A success resets the consecutive failure run.
	require.NoError(t, b.Execute(func() error { return nil }))
	failingCalls(b, 4)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := New(Config{
		Name:             "test",
		FailureThreshold: 5,
		Window:           time.Minute,
		ResetTimeout:     time.Minute,
	}, zap.NewNop())

	failingCalls(b, 5)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_OpenCircuitFailsFast(t *testing.T) {
	b := New(Config{
		Name:             "neo4j",
		FailureThreshold: 2,
		Window:           time.Minute,
		ResetTimeout:     time.Minute,
	}, zap.NewNop())

	failingCalls(b, 2)

	invoked := false
	err := b.Execute(func() error {
		invoked = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))
	assert.False(t, invoked, "dependency must not be called while open")
}

func TestBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := New(Config{
		Name:             "test",
		FailureThreshold: 2,
		Window:           time.Minute,
		ResetTimeout:     20 * time.Millisecond,
	}, zap.NewNop())

	failingCalls(b, 2)
	require.Equal(t, "open", b.State())

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	b := New(Config{
		Name:             "test",
		FailureThreshold: 2,
		Window:           time.Minute,
		ResetTimeout:     20 * time.Millisecond,
	}, zap.NewNop())

	failingCalls(b, 2)
	time.Sleep(30 * time.Millisecond)

	err := b.Execute(func() error { return errBackend })
	require.Error(t, err)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_PassesThroughDependencyError(t *testing.T) {
	b := New(DefaultConfig("test"), zap.NewNop())

	err := b.Execute(func() error { return errBackend })
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, errors.IsCircuitOpen(err))
}

func TestBreaker_OnStateChangeHook(t *testing.T) {
	type transition struct{ dependency, from, to string }
	var seen []transition

	b := New(Config{
		Name:             "test",
		FailureThreshold: 2,
		Window:           time.Minute,
		ResetTimeout:     time.Minute,
		OnStateChange: func(dependency, from, to string) {
			seen = append(seen, transition{dependency, from, to})
		},
	}, zap.NewNop())

	failingCalls(b, 2)

	require.Len(t, seen, 1)
	assert.Equal(t, transition{"test", "closed", "open"}, seen[0])
}

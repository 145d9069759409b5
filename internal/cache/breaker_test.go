package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCache counts backend calls and fails while err is set.
type flakyCache struct {
	err         error
	gets        int
	sets        int
	invalidates int
}

func (f *flakyCache) Get(context.Context, string, any) (Generation, bool, error) {
	f.gets++
	return 1, f.err == nil, f.err
}

func (f *flakyCache) Set(context.Context, Generation, string, any) error {
	f.sets++
	return f.err
}

func (f *flakyCache) Invalidate(context.Context) error {
	f.invalidates++
	return f.err
}

func (f *flakyCache) Close() error { return nil }

func newGuardedAt(next Cache, now *time.Time) *Guarded {
	g := NewGuarded(next, BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	g.nowFunc = func() time.Time { return *now }
	return g
}

func TestGuarded_PassesThroughWhenClosed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := &flakyCache{}
	g := newGuardedAt(backend, &now)

	gen, ok, err := g.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, g.Set(ctx, gen, "k", 1))
	require.NoError(t, g.Invalidate(ctx))

	assert.Equal(t, 1, backend.gets)
	assert.Equal(t, 1, backend.sets)
	assert.Equal(t, 1, backend.invalidates)
	assert.Equal(t, CircuitClosed, g.State())
}

func TestGuarded_OpensAndSkipsBackend(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := &flakyCache{err: errors.New("connection refused")}
	g := newGuardedAt(backend, &now)

	for range 2 {
		_, _, err := g.Get(ctx, "k", nil)
		assert.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, g.State())

	// Open circuit: misses and no-op writes without touching the backend.
	gen, ok, err := g.Get(ctx, "k", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, NoGeneration, gen)
	assert.NoError(t, g.Set(ctx, 1, "k", 1))
	assert.Equal(t, 2, backend.gets)
	assert.Zero(t, backend.sets)

	assert.ErrorIs(t, g.Invalidate(ctx), ErrCircuitOpen)
	assert.Zero(t, backend.invalidates)
}

func TestGuarded_RecoversAndDeliversPendingInvalidation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := &flakyCache{err: errors.New("timeout")}
	g := newGuardedAt(backend, &now)

	_ = g.Set(ctx, 1, "k", 1)
	_ = g.Set(ctx, 1, "k", 1)
	require.Equal(t, CircuitOpen, g.State())

	// A write happened while Redis was unreachable.
	require.Error(t, g.Invalidate(ctx))

	backend.err = nil
	now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, g.State())

	_, ok, err := g.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, backend.invalidates, "pending invalidation runs before the probe read")
	assert.Equal(t, CircuitClosed, g.State())

	_, _, _ = g.Get(ctx, "k", nil)
	assert.Equal(t, 1, backend.invalidates)
}

func TestGuarded_FailedProbeReopens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := &flakyCache{err: errors.New("down")}
	g := newGuardedAt(backend, &now)

	_ = g.Set(ctx, 1, "k", 1)
	_ = g.Set(ctx, 1, "k", 1)
	now = now.Add(2 * time.Minute)

	assert.Error(t, g.Set(ctx, 1, "k", 1))
	assert.Equal(t, CircuitOpen, g.State())
	assert.Equal(t, 3, backend.sets)
}

func TestGuarded_HalfOpenAdmitsSingleProbe(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := &flakyCache{err: errors.New("down")}
	g := newGuardedAt(backend, &now)

	_ = g.Set(ctx, 1, "k", 1)
	_ = g.Set(ctx, 1, "k", 1)
	require.Equal(t, CircuitOpen, g.State())
	now = now.Add(2 * time.Minute)

	assert.True(t, g.allow(), "first caller probes")
	assert.False(t, g.allow(), "second caller waits for the probe")
	assert.Equal(t, CircuitHalfOpen, g.State())

	g.record(nil)
	assert.Equal(t, CircuitClosed, g.State())
	assert.True(t, g.allow())
	assert.True(t, g.allow())
}

func TestGuarded_SetIgnoresNoGeneration(t *testing.T) {
	backend := &flakyCache{}
	g := newGuardedAt(backend, new(time.Time))

	require.NoError(t, g.Set(context.Background(), NoGeneration, "k", 1))
	assert.Zero(t, backend.sets)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

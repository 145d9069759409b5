package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned by Guarded.Invalidate while the backend is being
// skipped.
var ErrCircuitOpen = eris.New("cache: circuit breaker is open")

// CircuitState is the state of a Guarded cache's breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // calls reach the backend
	CircuitOpen                         // calls are skipped
	CircuitHalfOpen                     // a single probe call is admitted
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Guarded cache stops calling its backend.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that open the
	// circuit. Default: 5.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe.
	// Default: 30s.
	ResetTimeout time.Duration
}

// Guarded wraps a Cache with a circuit breaker. While the circuit is open Get
// reports a miss and Set does nothing, so an unreachable Redis costs views
// nothing but a recompute. An invalidation that could not be delivered is
// retried before the backend serves anything again, so no view computed
// before the last write is returned after recovery.
type Guarded struct {
	next Cache
	cfg  BreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	lastFailure         time.Time
	pendingInvalidate   bool
	probing             bool

	nowFunc func() time.Time
}

// NewGuarded wraps next.
func NewGuarded(next Cache, cfg BreakerConfig) *Guarded {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Guarded{next: next, cfg: cfg, nowFunc: time.Now}
}

// State returns the current circuit state.
func (g *Guarded) State() CircuitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == CircuitOpen && g.nowFunc().Sub(g.lastFailure) >= g.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return g.state
}

func (g *Guarded) Get(ctx context.Context, key string, dest any) (Generation, bool, error) {
	if !g.ready(ctx) {
		return NoGeneration, false, nil
	}
	gen, ok, err := g.next.Get(ctx, key, dest)
	g.record(err)
	return gen, ok, err
}

func (g *Guarded) Set(ctx context.Context, gen Generation, key string, v any) error {
	if gen == NoGeneration || !g.ready(ctx) {
		return nil
	}
	err := g.next.Set(ctx, gen, key, v)
	g.record(err)
	return err
}

// Invalidate drops every entry. If the backend cannot be reached the
// invalidation stays pending until it can.
func (g *Guarded) Invalidate(ctx context.Context) error {
	if !g.allow() {
		g.markPending()
		return ErrCircuitOpen
	}
	err := g.next.Invalidate(ctx)
	g.record(err)
	if err != nil {
		g.markPending()
		return err
	}
	g.mu.Lock()
	g.pendingInvalidate = false
	g.mu.Unlock()
	return nil
}

func (g *Guarded) Close() error {
	return g.next.Close()
}

// ready admits a call and first delivers any pending invalidation.
func (g *Guarded) ready(ctx context.Context) bool {
	if !g.allow() {
		return false
	}

	g.mu.Lock()
	pending := g.pendingInvalidate
	g.mu.Unlock()
	if !pending {
		return true
	}

	err := g.next.Invalidate(ctx)
	g.record(err)
	if err != nil {
		return false
	}
	g.mu.Lock()
	g.pendingInvalidate = false
	g.mu.Unlock()
	zap.L().Info("cache: delivered pending invalidation")
	return true
}

func (g *Guarded) markPending() {
	g.mu.Lock()
	g.pendingInvalidate = true
	g.mu.Unlock()
}

func (g *Guarded) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case CircuitOpen:
		if g.nowFunc().Sub(g.lastFailure) < g.cfg.ResetTimeout {
			return false
		}
		g.transition(CircuitHalfOpen)
		g.probing = true
		return true
	case CircuitHalfOpen:
		// Other callers wait for the probe's outcome.
		if g.probing {
			return false
		}
		g.probing = true
		return true
	default:
		return true
	}
}

func (g *Guarded) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.probing = false
	if err == nil {
		if g.state == CircuitHalfOpen {
			g.transition(CircuitClosed)
		}
		g.consecutiveFailures = 0
		return
	}

	g.consecutiveFailures++
	g.lastFailure = g.nowFunc()

	switch g.state {
	case CircuitClosed:
		if g.consecutiveFailures >= g.cfg.FailureThreshold {
			g.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure while probing reopens the circuit.
		g.transition(CircuitOpen)
	}
}

func (g *Guarded) transition(to CircuitState) {
	from := g.state
	g.state = to
	zap.L().Warn("cache: circuit state change",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("consecutive_failures", g.consecutiveFailures),
	)
}

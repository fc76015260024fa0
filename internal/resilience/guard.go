// Package resilience bounds collaborator calls with a timeout and a
// consecutive-failure breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "trading-agent/internal/errors"
)

// State represents the state of a guard's breaker.
type State string

const (
	StateClosed   State = "CLOSED"    // Normal operation
	StateOpen     State = "OPEN"      // Failing, rejecting calls
	StateHalfOpen State = "HALF_OPEN" // Letting one call probe recovery
)

// ErrOpen is returned while the guard rejects calls.
var ErrOpen = errors.New("collaborator guard is open")

// Config holds guard configuration.
type Config struct {
	// Timeout bounds every call.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures before opening. Zero disables.
	FailureThreshold int
	// ResetTimeout is how long the guard stays open before probing.
	ResetTimeout time.Duration
}

// DefaultConfig returns a 10s timeout that opens after 5 failures for one minute.
func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	}
}

// Guard protects one collaborator.
type Guard struct {
	name   string
	config Config

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool // a half-open probe is in flight

	totalCalls    int64
	totalFailures int64
	totalTimeouts int64
	totalRejected int64
}

// NewGuard creates a guard for the named collaborator.
func NewGuard(name string, config Config) *Guard {
	return &Guard{name: name, config: config, state: StateClosed}
}

// Name returns the collaborator name.
func (g *Guard) Name() string {
	return g.name
}

// Call runs fn with the guard's timeout. Any failure comes back as an
// ExternalError naming the collaborator and symbol.
func Call[T any](g *Guard, ctx context.Context, symbol string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := g.allow(); err != nil {
		return zero, apperrors.NewExternalError(g.name, symbol, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			g.recordFailure(false)
			return zero, apperrors.NewExternalError(g.name, symbol, r.err)
		}
		g.recordSuccess()
		return r.value, nil
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.ErrTimeout
		}
		g.recordFailure(true)
		return zero, apperrors.NewExternalError(g.name, symbol, err)
	}
}

func (g *Guard) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalCalls++
	switch g.state {
	case StateOpen:
		if time.Since(g.lastFailure) > g.config.ResetTimeout {
			g.state = StateHalfOpen
			g.probing = true
			return nil
		}
		g.totalRejected++
		return ErrOpen
	case StateHalfOpen:
		if g.probing {
			g.totalRejected++
			return ErrOpen
		}
		g.probing = true
		return nil
	default:
		return nil
	}
}

func (g *Guard) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures = 0
	g.probing = false
	g.state = StateClosed
}

func (g *Guard) recordFailure(timeout bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalFailures++
	if timeout {
		g.totalTimeouts++
	}
	g.lastFailure = time.Now()
	g.failures++
	g.probing = false

	if g.state == StateHalfOpen ||
		(g.config.FailureThreshold > 0 && g.failures >= g.config.FailureThreshold) {
		g.state = StateOpen
	}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Stats holds guard statistics.
type Stats struct {
	Name          string
	State         State
	TotalCalls    int64
	TotalFailures int64
	TotalTimeouts int64
	TotalRejected int64
}

// Stats returns guard statistics.
func (g *Guard) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Stats{
		Name:          g.name,
		State:         g.state,
		TotalCalls:    g.totalCalls,
		TotalFailures: g.totalFailures,
		TotalTimeouts: g.totalTimeouts,
		TotalRejected: g.totalRejected,
	}
}

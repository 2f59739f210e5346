package ratelimit

import (
	"context"

	"github.com/tastyGranola/bioquery/errors"
)

// Gate caps the number of in-flight calls across all endpoints. It protects
// local resources (sockets, goroutines) independently of the per-endpoint
// quotas.
type Gate struct {
	sem chan struct{}
}

// NewGate creates a gate admitting at most max concurrent holders.
func NewGate(max int) *Gate {
	if max <= 0 {
		max = 10
	}
	return &Gate{sem: make(chan struct{}, max)}
}

// Acquire blocks until a slot is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking. Returns false when the gate is
// full.
func (g *Gate) TryAcquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// TryAcquireErr is TryAcquire surfaced as the classified concurrency error
// for non-blocking callers.
func (g *Gate) TryAcquireErr() error {
	if g.TryAcquire() {
		return nil
	}
	return errors.ErrConcurrencyLimit
}

// Release frees a slot taken by Acquire or TryAcquire.
func (g *Gate) Release() {
	select {
	case <-g.sem:
	default:
		// Release without a matching Acquire is a caller bug; absorbing it
		// keeps the gate counters consistent.
	}
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int {
	return len(g.sem)
}

// Capacity returns the maximum number of concurrent holders.
func (g *Gate) Capacity() int {
	return cap(g.sem)
}

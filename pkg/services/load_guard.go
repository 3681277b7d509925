package services

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// guardPollInterval is how often Wait checks a busy guard.
const guardPollInterval = 50 * time.Millisecond

// LoadGuard serializes the operations that write the dataset relations
// within one process. Loads and clears share a single guard.
type LoadGuard struct {
	busy atomic.Bool
}

// NewLoadGuard returns an idle guard.
func NewLoadGuard() *LoadGuard {
	return &LoadGuard{}
}

// TryAcquire marks the guard busy. It returns false if it already was.
func (g *LoadGuard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release marks the guard idle.
func (g *LoadGuard) Release() {
	g.busy.Store(false)
}

// Busy reports whether a writer currently holds the guard.
func (g *LoadGuard) Busy() bool {
	return g.busy.Load()
}

// Wait blocks until the guard is idle or ctx is done. Shutdown uses it to
// let a background load record its outcome before the pool is closed.
func (g *LoadGuard) Wait(ctx context.Context) error {
	if !g.Busy() {
		return nil
	}
	ticker := time.NewTicker(guardPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !g.Busy() {
				return nil
			}
		}
	}
}

package recon

// gate.go serializes batch runs.
//
// The ledger assumes a single writer: one reconciliation run processes one
// batch to completion before another may begin. The gate is a semaphore
// with a wait timeout, sized to 1 by default; callers that cannot acquire
// a slot in time receive ErrRunInProgress. WaitForDrain supports graceful
// shutdown by blocking until in-flight runs finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when another batch run holds the gate and
// the wait timeout expires. Clients should retry after the run completes.
var ErrRunInProgress = errors.New("a batch run is already in progress, try again later")

// DefaultMaxConcurrentRuns keeps the ledger single-writer.
const DefaultMaxConcurrentRuns = 1

// DefaultRunWaitTime is how long to wait for the gate before rejecting.
const DefaultRunWaitTime = 30 * time.Second

type runGate struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

func newRunGate(maxConcurrent int, maxWait time.Duration) *runGate {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultRunWaitTime
	}
	return &runGate{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// acquire takes a run slot, waiting up to maxWait. The caller must release
// exactly once on success.
func (g *runGate) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.semaphore <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunInProgress
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *runGate) release() {
	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	<-g.semaphore
}

func (g *runGate) activeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// waitForDrain blocks until no run is active or the context is cancelled.
func (g *runGate) waitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if g.activeCount() == 0 {
				return nil
			}
		}
	}
}

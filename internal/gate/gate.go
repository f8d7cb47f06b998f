// Package gate implements the Concurrency Gate (spec.md §4.5, C5): a
// counting semaphore bounding in-flight request-level operations.
// Grounded on golang.org/x/sync/semaphore, the same package the teacher
// and the wider retrieval pack depend on for this purpose.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds concurrent ingress operations to a fixed capacity.
// Acquisition is FIFO (golang.org/x/sync/semaphore documents fair
// arrival-order acquisition); there is no timeout at this layer, per
// spec.md §4.5.
type Gate struct {
	sem *semaphore.Weighted
}

// New creates a Gate sized to maxConcurrentOps permits.
func New(maxConcurrentOps int) *Gate {
	if maxConcurrentOps <= 0 {
		maxConcurrentOps = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(maxConcurrentOps))}
}

// Acquire blocks until a permit is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a permit.
func (g *Gate) Release() {
	g.sem.Release(1)
}

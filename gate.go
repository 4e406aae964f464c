package cortex

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// concurrencyGate bounds the number of simultaneously executing pipelines.
// A permit is acquired immediately before the first phase and released only
// after the terminal phase, so the bound applies to executing work rather
// than scheduled work.
type concurrencyGate struct {
	sem *semaphore.Weighted
	cap int
}

func newConcurrencyGate(max int) *concurrencyGate {
	return &concurrencyGate{
		sem: semaphore.NewWeighted(int64(max)),
		cap: max,
	}
}

// Acquire blocks until a permit is free or ctx is done.
func (g *concurrencyGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *concurrencyGate) Release() {
	g.sem.Release(1)
}

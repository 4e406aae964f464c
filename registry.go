package cortex

import (
	"context"
	"sync"
	"time"
)

// activeRun is one in-flight execution: its cancel function plus cancellation
// bookkeeping.
type activeRun struct {
	request   *QueuedRequest
	cancel    context.CancelFunc
	started   time.Time
	cancelled bool
}

// activeRegistry tracks cancellable in-flight executions keyed by request id.
// Mutated by the dispatcher (Add), by each execution unit (Remove), and by
// public API calls (Cancel, Count), always under the mutex.
type activeRegistry struct {
	mu   sync.Mutex
	runs map[string]*activeRun
}

func newActiveRegistry() *activeRegistry {
	return &activeRegistry{runs: make(map[string]*activeRun)}
}

func (r *activeRegistry) Add(qr *QueuedRequest, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[qr.ID] = &activeRun{
		request: qr,
		cancel:  cancel,
		started: time.Now(),
	}
}

func (r *activeRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}

// Cancel requests cooperative cancellation of a running execution. Returns
// true only on the first call for an id that is still in flight; repeat
// calls and unknown ids return false so cancellation stays idempotent.
func (r *activeRegistry) Cancel(id string) bool {
	r.mu.Lock()
	run, ok := r.runs[id]
	if !ok || run.cancelled {
		r.mu.Unlock()
		return false
	}
	run.cancelled = true
	cancel := run.cancel
	r.mu.Unlock()

	cancel()
	return true
}

// CancelAll cancels every in-flight execution. Used during shutdown.
func (r *activeRegistry) CancelAll() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.runs))
	for _, run := range r.runs {
		if !run.cancelled {
			run.cancelled = true
			cancels = append(cancels, run.cancel)
		}
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (r *activeRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

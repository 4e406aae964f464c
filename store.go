package cortex

import (
	"context"
	"sync"
	"time"
)

// resultStore holds terminal results keyed by request id until consumed.
// Waiters block on a per-id channel that Put closes, so retrieval is
// signal-driven rather than polled. Take is destructive: the first caller to
// retrieve a result owns it (at-most-once delivery).
type resultStore struct {
	mu      sync.Mutex
	results map[string]*ProcessingResult
	waiters map[string]chan struct{}
}

func newResultStore() *resultStore {
	return &resultStore{
		results: make(map[string]*ProcessingResult),
		waiters: make(map[string]chan struct{}),
	}
}

// Put stores the terminal result and wakes any waiter. The first result for
// an id wins; later writes are dropped to preserve exactly-one-result
// semantics.
func (s *resultStore) Put(r *ProcessingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[r.RequestID]; exists {
		return
	}
	s.results[r.RequestID] = r
	if w, ok := s.waiters[r.RequestID]; ok {
		close(w)
		delete(s.waiters, r.RequestID)
	}
}

// Take removes and returns the result for id, if present.
func (s *resultStore) Take(id string) (*ProcessingResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if ok {
		delete(s.results, id)
	}
	return r, ok
}

// Await blocks until a result for id is present or the timeout elapses. It
// never cancels the underlying execution; it only bounds the caller's wait.
func (s *resultStore) Await(ctx context.Context, id string, timeout time.Duration) (*ProcessingResult, error) {
	s.mu.Lock()
	if r, ok := s.results[id]; ok {
		delete(s.results, id)
		s.mu.Unlock()
		return r, nil
	}
	w, ok := s.waiters[id]
	if !ok {
		w = make(chan struct{})
		s.waiters[id] = w
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w:
		if r, ok := s.Take(id); ok {
			return r, nil
		}
		// Another waiter consumed it first.
		return nil, ErrResultTimeout
	case <-timer.C:
		return nil, ErrResultTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

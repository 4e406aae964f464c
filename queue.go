package cortex

import (
	"context"
	"sync"
)

// priorityQueue is a bounded four-band priority queue. Higher bands drain
// first; each band is strict FIFO. Enqueue, Dequeue, and Remove share one
// mutex so a removal can never race a dequeue of the same entry.
type priorityQueue struct {
	mu    sync.Mutex
	bands [priorityBands][]*QueuedRequest
	size  int
	max   int

	// wake coalesces enqueue notifications for the single dispatcher
	// consumer.
	wake chan struct{}
}

func newPriorityQueue(max int) *priorityQueue {
	return &priorityQueue{
		max:  max,
		wake: make(chan struct{}, 1),
	}
}

// Enqueue admits the request behind all equal-or-higher priority entries.
// Fails with ErrQueueFull at capacity, leaving the queue untouched.
func (q *priorityQueue) Enqueue(qr *QueuedRequest) error {
	q.mu.Lock()
	if q.size >= q.max {
		q.mu.Unlock()
		return ErrQueueFull
	}
	band := int(qr.Priority) - 1
	q.bands[band] = append(q.bands[band], qr)
	q.size++
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue blocks until an entry is available or ctx is done, returning the
// highest-priority earliest-submitted entry.
func (q *priorityQueue) Dequeue(ctx context.Context) (*QueuedRequest, error) {
	for {
		if qr := q.pop(); qr != nil {
			return qr, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
			// Recheck: the wake is coalesced and may be stale after a
			// Remove.
		}
	}
}

func (q *priorityQueue) pop() *QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	for band := priorityBands - 1; band >= 0; band-- {
		entries := q.bands[band]
		if len(entries) == 0 {
			continue
		}
		qr := entries[0]
		q.bands[band] = entries[1:]
		q.size--
		return qr
	}
	return nil
}

// Remove deletes a queued-but-undispatched entry by id, so a request can be
// cancelled without ever starting a pipeline. Returns false when the id is
// not queued (already dispatched or unknown).
func (q *priorityQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for band := range q.bands {
		for i, qr := range q.bands[band] {
			if qr.ID != id {
				continue
			}
			q.bands[band] = append(q.bands[band][:i], q.bands[band][i+1:]...)
			q.size--
			return true
		}
	}
	return false
}

// drain empties the queue and returns everything that was still waiting,
// highest priority first.
func (q *priorityQueue) drain() []*QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*QueuedRequest, 0, q.size)
	for band := priorityBands - 1; band >= 0; band-- {
		out = append(out, q.bands[band]...)
		q.bands[band] = nil
	}
	q.size = 0
	return out
}

// Len is a cheap read used for admission checks and stats.
func (q *priorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

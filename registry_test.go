package cortex

import (
	"sync/atomic"
	"testing"
)

func TestRegistryCancelIsIdempotent(t *testing.T) {
	r := newActiveRegistry()

	var cancels atomic.Int32
	r.Add(queuedRequest("r1", "x"), func() { cancels.Add(1) })

	if !r.Cancel("r1") {
		t.Fatal("first cancel should succeed")
	}
	if r.Cancel("r1") {
		t.Error("second cancel should return false")
	}
	if r.Cancel("unknown") {
		t.Error("cancel of unknown id should return false")
	}
	if got := cancels.Load(); got != 1 {
		t.Errorf("expected cancel func to run once, ran %d times", got)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := newActiveRegistry()
	r.Add(queuedRequest("r1", "x"), func() {})

	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
	r.Remove("r1")
	if r.Count() != 0 {
		t.Errorf("expected count 0 after remove, got %d", r.Count())
	}
	if r.Cancel("r1") {
		t.Error("cancel after remove should return false")
	}
}

func TestRegistryCancelAll(t *testing.T) {
	r := newActiveRegistry()

	var cancels atomic.Int32
	for _, id := range []string{"a", "b", "c"} {
		r.Add(queuedRequest(id, "x"), func() { cancels.Add(1) })
	}
	r.Cancel("a")

	r.CancelAll()
	if got := cancels.Load(); got != 3 {
		t.Errorf("expected 3 cancel funcs to run exactly once each, got %d", got)
	}
}

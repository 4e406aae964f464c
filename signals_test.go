package cortex

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	capitantesting "github.com/zoobzio/capitan/testing"
)

// getStringField extracts a string field value from a captured event.
func getStringField(event capitantesting.CapturedEvent, keyName string) string {
	for _, f := range event.Fields {
		if f.Key().Name() == keyName {
			if v, ok := f.Value().(string); ok {
				return v
			}
		}
	}
	return ""
}

func TestRequestLifecycleSignals(t *testing.T) {
	submitted := capitantesting.NewEventCapture()
	subListener := capitan.Hook(RequestSubmitted, submitted.Handler())
	defer subListener.Close()

	completed := capitantesting.NewEventCapture()
	doneListener := capitan.Hook(RequestCompleted, completed.Handler())
	defer doneListener.Close()

	stubs := newStubSet()
	e := startEngine(t, Config{}, stubs)

	ctx := context.Background()
	id, err := e.Submit(ctx, testRequest("observe me"), PriorityHigh)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.Result(ctx, id, 5*time.Second); err != nil {
		t.Fatalf("result: %v", err)
	}

	if !submitted.WaitForCount(1, time.Second) {
		t.Fatal("expected RequestSubmitted event")
	}
	sub := submitted.Events()[0]
	if got := getStringField(sub, FieldRequestID.Name()); got != id {
		t.Errorf("expected request_id %s, got %q", id, got)
	}
	if got := getStringField(sub, FieldPriority.Name()); got != "high" {
		t.Errorf("expected priority high, got %q", got)
	}
	if got := getStringField(sub, FieldClientID.Name()); got != "client-1" {
		t.Errorf("expected client-1, got %q", got)
	}

	if !completed.WaitForCount(1, time.Second) {
		t.Fatal("expected RequestCompleted event")
	}
	done := completed.Events()[0]
	if got := getStringField(done, FieldPhase.Name()); got != PhaseApprove {
		t.Errorf("expected terminal phase %s, got %q", PhaseApprove, got)
	}
}

func TestPhaseStartedSignals(t *testing.T) {
	started := capitantesting.NewEventCapture()
	listener := capitan.Hook(PhaseStarted, started.Handler())
	defer listener.Close()

	stubs := newStubSet()
	e := startEngine(t, Config{}, stubs)

	ctx := context.Background()
	id, err := e.Submit(ctx, testRequest("phase tour"), PriorityNormal)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.Result(ctx, id, 5*time.Second); err != nil {
		t.Fatalf("result: %v", err)
	}

	want := []string{PhaseValidate, PhasePerceive, PhasePlan, PhaseReflect, PhaseApprove}
	if !started.WaitForCount(len(want), time.Second) {
		t.Fatalf("expected %d PhaseStarted events, got %d", len(want), len(started.Events()))
	}

	events := started.Events()
	for i, phase := range want {
		if got := getStringField(events[i], FieldPhase.Name()); got != phase {
			t.Errorf("event %d: expected phase %s, got %q", i, phase, got)
		}
		if got := getStringField(events[i], FieldRequestID.Name()); got != id {
			t.Errorf("event %d: expected request_id %s, got %q", i, id, got)
		}
	}
}

func TestPhaseCompletedSignals(t *testing.T) {
	completed := capitantesting.NewEventCapture()
	listener := capitan.Hook(PhaseCompleted, completed.Handler())
	defer listener.Close()

	stubs := newStubSet()
	e := startEngine(t, Config{}, stubs)

	ctx := context.Background()
	id, err := e.Submit(ctx, testRequest("measure every phase"), PriorityNormal)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.Result(ctx, id, 5*time.Second); err != nil {
		t.Fatalf("result: %v", err)
	}

	// The run's context is cancelled as soon as the pipeline returns; the
	// metric events must still arrive.
	want := []string{PhaseValidate, PhasePerceive, PhasePlan, PhaseReflect, PhaseApprove}
	if !completed.WaitForCount(len(want), time.Second) {
		t.Fatalf("expected %d PhaseCompleted events, got %d", len(want), len(completed.Events()))
	}
	events := completed.Events()
	for i, phase := range want {
		if got := getStringField(events[i], FieldPhase.Name()); got != phase {
			t.Errorf("event %d: expected phase %s, got %q", i, phase, got)
		}
		if got := getStringField(events[i], FieldRequestID.Name()); got != id {
			t.Errorf("event %d: expected request_id %s, got %q", i, id, got)
		}
	}
}

func TestRequestRejectedSignal(t *testing.T) {
	rejected := capitantesting.NewEventCapture()
	listener := capitan.Hook(RequestRejected, rejected.Handler())
	defer listener.Close()

	stubs := newStubSet()
	e := newEngine(t, Config{}, stubs)
	e.WithRateLimiter(NewTierLimiter(time.Minute, map[Tier]int{TierFree: 0}))
	runEngine(t, e)

	req := testRequest("denied at the door")
	req.Tier = TierFree
	if _, err := e.Submit(context.Background(), req, PriorityNormal); err == nil {
		t.Fatal("expected rate limit rejection")
	}

	if !rejected.WaitForCount(1, time.Second) {
		t.Fatal("expected RequestRejected event")
	}
	if got := getStringField(rejected.Events()[0], FieldClientID.Name()); got != "client-1" {
		t.Errorf("expected client-1, got %q", got)
	}
}

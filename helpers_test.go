package cortex

import (
	"context"
	"sync"
	"time"
)

// stubPerception counts calls and optionally blocks until released or the
// run context is cancelled.
type stubPerception struct {
	mu     sync.Mutex
	calls  int
	texts  []string
	err    error
	intent string

	// started receives the input text when a call begins.
	started chan string

	// release, when set, blocks the call until closed or ctx is done.
	release chan struct{}
}

func (s *stubPerception) Perceive(ctx context.Context, text string, _ map[string]string) (*PerceivedInput, error) {
	s.mu.Lock()
	s.calls++
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.started != nil {
		select {
		case s.started <- text:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	intent := s.intent
	if intent == "" {
		intent = "assist"
	}
	return &PerceivedInput{PrimaryIntent: intent, Confidence: 0.9}, nil
}

func (s *stubPerception) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubPlanner records every goal it was asked to plan for.
type stubPlanner struct {
	mu    sync.Mutex
	goals []string
	err   error
}

func (s *stubPlanner) CreatePlan(_ context.Context, goal string, _ *PerceivedInput) (*ExecutionPlan, error) {
	s.mu.Lock()
	s.goals = append(s.goals, goal)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &ExecutionPlan{
		Goal:    goal,
		Steps:   []PlanStep{{Name: "respond", Action: "draft a response"}},
		Summary: "plan for: " + goal,
	}, nil
}

func (s *stubPlanner) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.goals))
	copy(out, s.goals)
	return out
}

type stubExecutor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubExecutor) Execute(_ context.Context, plan *ExecutionPlan) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	return "executed: " + plan.Goal, nil
}

func (s *stubExecutor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubReflector struct {
	mu     sync.Mutex
	calls  int
	seen   []string
	err    error
	score  float64
	passes bool
	issues []string
}

func (s *stubReflector) Evaluate(_ context.Context, _, output string, _ map[string]string) (*QualityScore, error) {
	s.mu.Lock()
	s.calls++
	s.seen = append(s.seen, output)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &QualityScore{Score: s.score, PassesQuality: s.passes, Issues: s.issues}, nil
}

type stubHuman struct {
	mu     sync.Mutex
	calls  int
	err    error
	status ApprovalStatus
}

func (s *stubHuman) Review(_ context.Context, _ string, _ *ExecutionPlan, _ *QualityScore, _ map[string]string) (*Approval, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == "" {
		status = ApprovalApproved
	}
	return &Approval{Status: status, Confidence: 0.95}, nil
}

func (s *stubHuman) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubSet bundles one stub per module slot, all passing by default.
type stubSet struct {
	perception *stubPerception
	planner    *stubPlanner
	executor   *stubExecutor
	reflector  *stubReflector
	human      *stubHuman
}

func newStubSet() *stubSet {
	return &stubSet{
		perception: &stubPerception{},
		planner:    &stubPlanner{},
		executor:   &stubExecutor{},
		reflector:  &stubReflector{score: 0.9, passes: true},
		human:      &stubHuman{},
	}
}

func (s *stubSet) modules() Modules {
	return Modules{
		Perception: s.perception,
		Planning:   s.planner,
		Executor:   s.executor,
		Reflection: s.reflector,
		HumanLoop:  s.human,
	}
}

func testRequest(text string) Request {
	return Request{
		Text:     text,
		ClientID: "client-1",
		Tier:     TierPro,
	}
}

func queuedRequest(id, text string) *QueuedRequest {
	return &QueuedRequest{
		ID:          id,
		Request:     testRequest(text),
		Priority:    PriorityNormal,
		SubmittedAt: time.Now(),
	}
}

package cortex

import (
	"context"
	"fmt"
	"strings"
)

// Modules bundles the cognitive collaborators the pipeline calls. Perception,
// Planning, and Reflection are required; Executor and HumanLoop are optional
// and fail their phase with ErrNotConfigured when a request needs them.
type Modules struct {
	Perception Perception
	Planning   Planning
	Executor   Executor
	Reflection Reflection
	HumanLoop  HumanLoop
}

// validate checks the required modules are present.
func (m Modules) validate() error {
	switch {
	case m.Perception == nil:
		return fmt.Errorf("perception: %w", ErrNotConfigured)
	case m.Planning == nil:
		return fmt.Errorf("planning: %w", ErrNotConfigured)
	case m.Reflection == nil:
		return fmt.Errorf("reflection: %w", ErrNotConfigured)
	}
	return nil
}

// Perception extracts structured meaning from raw request text.
type Perception interface {
	Perceive(ctx context.Context, text string, userContext map[string]string) (*PerceivedInput, error)
}

// PerceivedInput is the perception phase output.
type PerceivedInput struct {
	PrimaryIntent string            `json:"primary_intent"`
	Entities      map[string]string `json:"entities,omitempty"`
	Sentiment     string            `json:"sentiment,omitempty"`
	Confidence    float64           `json:"confidence"`
}

// Validate implements zyn.Validator for extraction-backed perception.
func (p PerceivedInput) Validate() error {
	if p.PrimaryIntent == "" {
		return fmt.Errorf("primary_intent required")
	}
	return nil
}

// Planning turns a goal plus perceived input into an execution plan.
type Planning interface {
	CreatePlan(ctx context.Context, goal string, input *PerceivedInput) (*ExecutionPlan, error)
}

// ExecutionPlan is the planning phase output.
type ExecutionPlan struct {
	Goal    string     `json:"goal"`
	Steps   []PlanStep `json:"steps,omitempty"`
	Summary string     `json:"summary"`
}

// PlanStep is a single action within an execution plan.
type PlanStep struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// Validate implements zyn.Validator for extraction-backed planning.
func (p ExecutionPlan) Validate() error {
	if p.Summary == "" && len(p.Steps) == 0 {
		return fmt.Errorf("plan requires a summary or steps")
	}
	return nil
}

// Render flattens the plan into text for reflection and result output.
func (p *ExecutionPlan) Render() string {
	var b strings.Builder
	if p.Goal != "" {
		b.WriteString("goal: ")
		b.WriteString(p.Goal)
	}
	for i, step := range p.Steps {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s: %s", i+1, step.Name, step.Action)
	}
	if p.Summary != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Summary)
	}
	return b.String()
}

func (p *ExecutionPlan) clone() *ExecutionPlan {
	c := &ExecutionPlan{Goal: p.Goal, Summary: p.Summary}
	if p.Steps != nil {
		c.Steps = make([]PlanStep, len(p.Steps))
		copy(c.Steps, p.Steps)
	}
	return c
}

// Executor carries out an execution plan and produces the final response
// text. Only invoked for requests with AutoExecute set.
type Executor interface {
	Execute(ctx context.Context, plan *ExecutionPlan) (string, error)
}

// Reflection evaluates pipeline output quality against the original request.
type Reflection interface {
	Evaluate(ctx context.Context, request, output string, userContext map[string]string) (*QualityScore, error)
}

// QualityScore is the reflection phase output. A failing score triggers the
// self-correction phase.
type QualityScore struct {
	Score         float64  `json:"score"`
	PassesQuality bool     `json:"passes_quality"`
	Issues        []string `json:"issues,omitempty"`
}

// Validate implements zyn.Validator for extraction-backed reflection.
func (q QualityScore) Validate() error {
	if q.Score < 0 || q.Score > 1 {
		return fmt.Errorf("score must be in [0,1], got %f", q.Score)
	}
	return nil
}

// HumanLoop reviews pipeline output before delivery.
type HumanLoop interface {
	Review(ctx context.Context, content string, plan *ExecutionPlan, score *QualityScore, userContext map[string]string) (*Approval, error)
}

// ApprovalStatus is the outcome of a human (or policy) review.
type ApprovalStatus string

const (
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalRejected      ApprovalStatus = "rejected"
	ApprovalNeedsRevision ApprovalStatus = "needs_revision"
)

// Approval is the human approval phase output.
type Approval struct {
	Status     ApprovalStatus `json:"status"`
	Confidence float64        `json:"confidence,omitempty"`
	Reasons    []string       `json:"reasons,omitempty"`
}

// Validation is the validator verdict for a submitted payload.
type Validation struct {
	Valid         bool
	Issues        []string
	SanitizedText string
}

// Validator checks a payload before the cognitive phases run. It is a pure
// query: invalid input is reported through the Validation value, not an
// error.
type Validator interface {
	ValidateRequest(req Request) Validation
}

package cortex

import (
	"time"
)

// Request is the payload a caller submits for cognitive processing.
type Request struct {
	// Text is the raw user input driving the pipeline.
	Text string

	// ClientID identifies the submitting client for rate limiting.
	ClientID string

	// Tier selects the client's rate-limit quota.
	Tier Tier

	// Attribution for metrics records.
	SessionID   string
	WorkspaceID string
	UserID      string

	// UserContext carries arbitrary caller state into the cognitive modules.
	UserContext map[string]string

	// AutoExecute enables the execute phase. When false the plan itself is
	// the reflected output.
	AutoExecute bool

	// SkipApproval disables the human approval phase. Approval is on by
	// default.
	SkipApproval bool
}

// QueuedRequest is a Request admitted into the priority queue. It exists from
// Submit until its terminal ProcessingResult is produced.
type QueuedRequest struct {
	ID          string
	Request     Request
	Priority    Priority
	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// ProcessingResult is the single terminal outcome of one request. It is held
// by the result store until a caller retrieves it; retrieval is destructive
// (at-most-once delivery).
type ProcessingResult struct {
	RequestID      string
	Success        bool
	Output         string
	Error          string
	ProcessingTime time.Duration
	// Phase is the terminal phase name: the last phase that ran on success,
	// or the phase at which the pipeline stopped on failure.
	Phase   string
	Metrics map[string]string
}

// PipelineContext is the per-request scratch state threaded through the
// pipeline phases. It exists only for the lifetime of one run and is owned
// exclusively by that run.
type PipelineContext struct {
	Request   *QueuedRequest
	Sanitized string

	Perceived  *PerceivedInput
	Plan       *ExecutionPlan
	Executed   string
	Quality    *QualityScore
	Correction *ExecutionPlan
	Approval   *Approval

	// Phase tracks the most recently entered phase.
	Phase string

	// Metrics accumulates per-phase timings and outcome annotations.
	Metrics map[string]string
}

func newPipelineContext(qr *QueuedRequest) *PipelineContext {
	return &PipelineContext{
		Request: qr,
		Metrics: make(map[string]string),
	}
}

// inputText returns the sanitized text when validation produced one, falling
// back to the raw request text.
func (pc *PipelineContext) inputText() string {
	if pc.Sanitized != "" {
		return pc.Sanitized
	}
	return pc.Request.Request.Text
}

// reflectedOutput is the output the reflect phase evaluates: the execution
// result when the execute phase ran, otherwise the rendered plan.
func (pc *PipelineContext) reflectedOutput() string {
	if pc.Executed != "" {
		return pc.Executed
	}
	if pc.Plan != nil {
		return pc.Plan.Render()
	}
	return ""
}

// finalOutput is what lands in ProcessingResult.Output: the corrected plan
// when self-correction ran, otherwise the reflected output.
func (pc *PipelineContext) finalOutput() string {
	if pc.Correction != nil {
		return pc.Correction.Render()
	}
	return pc.reflectedOutput()
}

// Clone creates a deep copy of the pipeline context. Required for
// pipz.Cloner so the context can flow through pipz connectors.
func (pc *PipelineContext) Clone() *PipelineContext {
	clone := &PipelineContext{
		Request:   pc.Request,
		Sanitized: pc.Sanitized,
		Executed:  pc.Executed,
		Phase:     pc.Phase,
		Metrics:   make(map[string]string, len(pc.Metrics)),
	}
	for k, v := range pc.Metrics {
		clone.Metrics[k] = v
	}
	if pc.Perceived != nil {
		p := *pc.Perceived
		clone.Perceived = &p
	}
	if pc.Plan != nil {
		clone.Plan = pc.Plan.clone()
	}
	if pc.Quality != nil {
		q := *pc.Quality
		clone.Quality = &q
	}
	if pc.Correction != nil {
		clone.Correction = pc.Correction.clone()
	}
	if pc.Approval != nil {
		a := *pc.Approval
		clone.Approval = &a
	}
	return clone
}

// Compile-time check: *PipelineContext must satisfy pipz's Cloner shape.
var _ interface{ Clone() *PipelineContext } = (*PipelineContext)(nil)

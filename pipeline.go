package cortex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Pipeline phase names, in execution order. Validate plus the six named
// phases; execute, self-correct, and human approval are conditional.
const (
	PhaseQueued   = "queued"
	PhaseValidate = "validate"
	PhasePerceive = "perceive"
	PhasePlan     = "plan"
	PhaseExecute  = "execute"
	PhaseReflect  = "reflect"
	PhaseCorrect  = "self_correct"
	PhaseApprove  = "human_approval"
)

// defaultGoal is used when perception yields no primary intent.
const defaultGoal = "assist with the user's request"

// buildPipeline assembles the fixed six-phase pipeline as a pipz sequence.
// Conditional phases are pipz filters over the request flags and the quality
// verdict. Phases run sequentially within one request; concurrency exists
// only across requests via the dispatcher and the gate.
func (e *Engine) buildPipeline() pipz.Chainable[*PipelineContext] {
	seq := pipz.NewSequence[*PipelineContext](pipz.Name("cortex-pipeline"),
		e.phase(PhaseValidate, e.runValidate),
		e.phase(PhasePerceive, e.runPerceive),
		e.phase(PhasePlan, e.runPlan),
		pipz.NewFilter(pipz.Name("execute-if-requested"),
			func(_ context.Context, pc *PipelineContext) bool {
				return pc.Request.Request.AutoExecute
			},
			e.phase(PhaseExecute, e.runExecute),
		),
		e.phase(PhaseReflect, e.runReflect),
		pipz.NewFilter(pipz.Name("correct-if-failing"),
			func(_ context.Context, pc *PipelineContext) bool {
				return pc.Quality != nil && !pc.Quality.PassesQuality
			},
			e.phase(PhaseCorrect, e.runCorrect),
		),
		pipz.NewFilter(pipz.Name("approve-unless-skipped"),
			func(_ context.Context, pc *PipelineContext) bool {
				return !pc.Request.Request.SkipApproval
			},
			e.phase(PhaseApprove, e.runApprove),
		),
	)

	if e.cfg.RequestTimeout > 0 {
		return pipz.NewTimeout(pipz.Name("cortex-deadline"), seq, e.cfg.RequestTimeout)
	}
	return seq
}

// phase wraps one pipeline stage: it records the phase name on the context,
// emits the entry signal, times the stage, and delivers a metric record on
// exit. Failures are wrapped as ModuleError tagged with the phase, except
// validation verdicts which keep their own type.
func (e *Engine) phase(name string, fn func(context.Context, *PipelineContext) error) pipz.Chainable[*PipelineContext] {
	return pipz.Apply(pipz.Name(name), func(ctx context.Context, pc *PipelineContext) (*PipelineContext, error) {
		pc.Phase = name
		start := time.Now()

		// Telemetry must outlive the run: capitan delivers events
		// asynchronously and drops any whose context is already done, and the
		// run's context is cancelled the moment the pipeline returns.
		telemetry := context.WithoutCancel(ctx)

		capitan.Emit(telemetry, PhaseStarted,
			FieldRequestID.Field(pc.Request.ID),
			FieldPhase.Field(name),
		)

		err := fn(ctx, pc)
		elapsed := time.Since(start)
		pc.Metrics[name+"_ms"] = strconv.FormatInt(elapsed.Milliseconds(), 10)

		e.track(telemetry, pc, name, elapsed, err)

		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return pc, err
			}
			return pc, &ModuleError{Phase: name, Err: err}
		}
		return pc, nil
	})
}

// track delivers a best-effort metric record for one phase.
func (e *Engine) track(ctx context.Context, pc *PipelineContext, phase string, elapsed time.Duration, err error) {
	req := pc.Request.Request
	m := RequestMetric{
		RequestID:      pc.Request.ID,
		SessionID:      req.SessionID,
		WorkspaceID:    req.WorkspaceID,
		UserID:         req.UserID,
		Phase:          phase,
		Provider:       e.cfg.Provider,
		Model:          e.cfg.Model,
		InputText:      pc.inputText(),
		ProcessingTime: elapsed,
		Success:        err == nil,
	}
	if err != nil {
		m.ErrorMessage = err.Error()
	}
	e.metrics.TrackRequest(ctx, m)
}

// runValidate applies the validator. Invalid input terminates the pipeline
// before any cognitive module is called.
func (e *Engine) runValidate(_ context.Context, pc *PipelineContext) error {
	v := e.validator.ValidateRequest(pc.Request.Request)
	if !v.Valid {
		return &ValidationError{Issues: v.Issues}
	}
	pc.Sanitized = v.SanitizedText
	return nil
}

func (e *Engine) runPerceive(ctx context.Context, pc *PipelineContext) error {
	perceived, err := e.modules.Perception.Perceive(ctx, pc.inputText(), pc.Request.Request.UserContext)
	if err != nil {
		return err
	}
	pc.Perceived = perceived
	return nil
}

func (e *Engine) runPlan(ctx context.Context, pc *PipelineContext) error {
	goal := defaultGoal
	if pc.Perceived != nil && pc.Perceived.PrimaryIntent != "" {
		goal = pc.Perceived.PrimaryIntent
	}
	plan, err := e.modules.Planning.CreatePlan(ctx, goal, pc.Perceived)
	if err != nil {
		return err
	}
	pc.Plan = plan
	return nil
}

func (e *Engine) runExecute(ctx context.Context, pc *PipelineContext) error {
	if e.modules.Executor == nil {
		return ErrNotConfigured
	}
	result, err := e.modules.Executor.Execute(ctx, pc.Plan)
	if err != nil {
		return err
	}
	pc.Executed = result
	return nil
}

func (e *Engine) runReflect(ctx context.Context, pc *PipelineContext) error {
	quality, err := e.modules.Reflection.Evaluate(ctx, pc.inputText(), pc.reflectedOutput(), pc.Request.Request.UserContext)
	if err != nil {
		return err
	}
	pc.Quality = quality
	pc.Metrics["quality_score"] = strconv.FormatFloat(quality.Score, 'f', 2, 64)
	return nil
}

// runCorrect re-plans with a goal synthesized from the quality issues. The
// corrected plan becomes the result output.
func (e *Engine) runCorrect(ctx context.Context, pc *PipelineContext) error {
	goal := defaultGoal
	if pc.Plan != nil && pc.Plan.Goal != "" {
		goal = pc.Plan.Goal
	}
	correctionGoal := fmt.Sprintf("revise the response for %q to address: %s",
		goal, strings.Join(pc.Quality.Issues, "; "))

	corrected, err := e.modules.Planning.CreatePlan(ctx, correctionGoal, pc.Perceived)
	if err != nil {
		return err
	}
	pc.Correction = corrected
	return nil
}

func (e *Engine) runApprove(ctx context.Context, pc *PipelineContext) error {
	if e.modules.HumanLoop == nil {
		return ErrNotConfigured
	}
	approval, err := e.modules.HumanLoop.Review(ctx, pc.finalOutput(), pc.Plan, pc.Quality, pc.Request.Request.UserContext)
	if err != nil {
		return err
	}
	pc.Approval = approval
	pc.Metrics["approval_status"] = string(approval.Status)
	return nil
}

package cortex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Engine is the concurrent cognitive request processor. It admits requests
// through rate limiting, orders them in a bounded priority queue, executes at
// most MaxConcurrent of them simultaneously, and routes each through the
// fixed multi-phase pipeline, producing a per-request result retrievable by
// id.
type Engine struct {
	cfg     Config
	modules Modules

	limiter    RateLimiter
	validator  Validator
	classifier ErrorClassifier
	metrics    MetricsCollector
	archive    Archive

	queue    *priorityQueue
	gate     *concurrencyGate
	store    *resultStore
	registry *activeRegistry
	stats    statCounters

	pipeline pipz.Chainable[*PipelineContext]

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
	started   atomic.Bool
	stopping  atomic.Bool
}

// New creates an engine with the given cognitive modules. Perception,
// Planning, and Reflection are required; Executor and HumanLoop may be nil
// and fail their phase with ErrNotConfigured when a request needs them.
func New(cfg Config, modules Modules) (*Engine, error) {
	if err := modules.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:        cfg,
		modules:    modules,
		validator:  defaultValidator{},
		classifier: defaultClassifier{},
		metrics:    SignalMetrics{},
		queue:      newPriorityQueue(cfg.MaxQueueSize),
		gate:       newConcurrencyGate(cfg.MaxConcurrent),
		store:      newResultStore(),
		registry:   newActiveRegistry(),
	}
	e.pipeline = e.buildPipeline()
	return e, nil
}

// WithRateLimiter sets the admission rate limiter. No limiter means
// unlimited admission. Like all With setters it must be called before
// Start; the setters are not synchronized with a running engine.
func (e *Engine) WithRateLimiter(l RateLimiter) *Engine {
	e.limiter = l
	return e
}

// WithValidator replaces the default payload validator. Must be called
// before Start.
func (e *Engine) WithValidator(v Validator) *Engine {
	e.validator = v
	return e
}

// WithClassifier replaces the default error classifier. Must be called
// before Start.
func (e *Engine) WithClassifier(c ErrorClassifier) *Engine {
	e.classifier = c
	return e
}

// WithMetrics replaces the default signal-emitting metrics collector. Must
// be called before Start.
func (e *Engine) WithMetrics(m MetricsCollector) *Engine {
	e.metrics = m
	return e
}

// WithArchive enables best-effort persistence of terminal results. Must be
// called before Start.
func (e *Engine) WithArchive(a Archive) *Engine {
	e.archive = a
	return e
}

// Start launches the dispatcher loop. Must be called before Submit.
func (e *Engine) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already started")
	}
	e.runCtx, e.cancelRun = context.WithCancel(context.Background())
	e.wg.Add(1)
	go e.dispatch()

	capitan.Emit(context.Background(), EngineStarted,
		FieldActive.Field(0),
		FieldQueueDepth.Field(0),
	)
	return nil
}

// Submit admits a request for processing and returns its id. Admission is
// all-or-nothing: the rate limit check and the capacity check both happen
// before any queue mutation, and a rejected request never enters the queue.
func (e *Engine) Submit(ctx context.Context, req Request, priority Priority) (string, error) {
	if !e.started.Load() || e.stopping.Load() {
		return "", ErrEngineStopped
	}
	if !priority.valid() {
		priority = PriorityNormal
	}

	if e.limiter != nil {
		decision := e.limiter.Check(req.ClientID, req.Tier)
		if !decision.Allowed {
			capitan.Emit(ctx, RequestRejected,
				FieldClientID.Field(req.ClientID),
				FieldTier.Field(string(req.Tier)),
				FieldRetryAfter.Field(decision.RetryAfter),
			)
			return "", &RateLimitError{
				ClientID:   req.ClientID,
				Tier:       req.Tier,
				RetryAfter: decision.RetryAfter,
			}
		}
	}

	qr := &QueuedRequest{
		ID:          uuid.New().String(),
		Request:     req,
		Priority:    priority,
		SubmittedAt: time.Now(),
	}
	if err := e.queue.Enqueue(qr); err != nil {
		capitan.Emit(ctx, RequestRejected,
			FieldClientID.Field(req.ClientID),
			FieldQueueDepth.Field(e.queue.Len()),
		)
		return "", err
	}

	capitan.Emit(ctx, RequestSubmitted,
		FieldRequestID.Field(qr.ID),
		FieldClientID.Field(req.ClientID),
		FieldPriority.Field(priority.String()),
		FieldQueueDepth.Field(e.queue.Len()),
	)
	return qr.ID, nil
}

// Result blocks until the request's terminal result is available or the
// timeout elapses, failing with ErrResultTimeout. Retrieval is destructive;
// a result is delivered at most once. The wait never cancels the underlying
// execution.
func (e *Engine) Result(ctx context.Context, id string, timeout time.Duration) (*ProcessingResult, error) {
	return e.store.Await(ctx, id, timeout)
}

// Cancel cancels a request. A queued-but-undispatched request is removed
// from the queue without ever starting a pipeline; a running request is
// cancelled cooperatively at its next checkpoint. Either way a cancelled
// result is stored. Returns false when the id is unknown, already terminal,
// or already being cancelled.
func (e *Engine) Cancel(id string) bool {
	if e.queue.Remove(id) {
		e.cancelQueued(id)
		return true
	}
	return e.registry.Cancel(id)
}

// cancelQueued stores the terminal result for a request that was removed
// from the queue without ever starting a pipeline.
func (e *Engine) cancelQueued(id string) {
	pr := &ProcessingResult{
		RequestID: id,
		Success:   false,
		Error:     cancelledMessage,
		Phase:     PhaseQueued,
		Metrics:   map[string]string{"error_class": string(ClassCancelled)},
	}
	e.stats.record(pr)
	e.store.Put(pr)
	capitan.Emit(context.Background(), RequestCancelled,
		FieldRequestID.Field(id),
		FieldPhase.Field(PhaseQueued),
	)
}

// Stats returns a point-in-time snapshot of engine throughput.
func (e *Engine) Stats() Stats {
	total, successful, failed, avg := e.stats.snapshot()
	return Stats{
		Total:             total,
		Successful:        successful,
		Failed:            failed,
		QueueSize:         e.queue.Len(),
		Active:            e.registry.Count(),
		AvgProcessingTime: avg,
	}
}

// Stop shuts the engine down: it stops accepting work, cancels all active
// executions and everything still queued, and waits for the active runs to
// drain, bounded by ShutdownTimeout.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return nil
	}
	if !e.stopping.CompareAndSwap(false, true) {
		return nil
	}

	// Requests admitted but never dispatched will not run; each still gets
	// its cancelled terminal result so a caller blocked in Result is
	// released. Draining before the active runs are cancelled means a freed
	// permit cannot race the drain for a queued entry.
	for _, qr := range e.queue.drain() {
		e.cancelQueued(qr.ID)
	}

	e.registry.CancelAll()
	e.cancelRun()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.cfg.ShutdownTimeout):
		return fmt.Errorf("shutdown: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}

	// A submit racing the shutdown can slip an entry in after the first
	// drain; the dispatcher is gone now, so sweep again.
	for _, qr := range e.queue.drain() {
		e.cancelQueued(qr.ID)
	}

	capitan.Emit(context.Background(), EngineStopped,
		FieldActive.Field(e.registry.Count()),
		FieldQueueDepth.Field(e.queue.Len()),
	)
	return nil
}

// dispatch is the scheduling loop: acquire a permit, dequeue, spawn, repeat.
// It does not wait for spawned executions; the gate bounds how many run at
// once. The loop survives unexpected failures by logging and backing off.
func (e *Engine) dispatch() {
	defer e.wg.Done()
	for e.iterate() {
	}
}

func (e *Engine) iterate() (ok bool) {
	var (
		held     bool
		qr       *QueuedRequest
		cancelFn context.CancelFunc
	)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		// A panic between acquire and spawn must not strand what the
		// iteration already holds: the permit goes back and a dequeued
		// request still gets its one terminal result.
		if cancelFn != nil {
			cancelFn()
		}
		if qr != nil {
			e.finish(qr, &ProcessingResult{
				RequestID:      qr.ID,
				Success:        false,
				Error:          fmt.Sprintf("internal failure: %v", r),
				ProcessingTime: time.Since(qr.SubmittedAt),
				Phase:          PhaseQueued,
				Metrics:        map[string]string{"error_class": string(ClassInternal)},
			})
		}
		if held {
			e.gate.Release()
		}
		capitan.Error(e.runCtx, DispatcherRecovered,
			FieldError.Field(fmt.Errorf("dispatcher panic: %v", r)),
		)
		time.Sleep(e.cfg.DispatchBackoff)
		ok = true
	}()

	// Acquire the permit before dequeuing so priority ordering is decided at
	// the moment a slot frees up, not at submission time. A request stays in
	// the queue, and stays cancellable there, until it can actually run.
	if err := e.gate.Acquire(e.runCtx); err != nil {
		return false
	}
	held = true

	var err error
	qr, err = e.queue.Dequeue(e.runCtx)
	if err != nil {
		e.gate.Release()
		held = false
		return false
	}

	capitan.Emit(e.runCtx, RequestDequeued,
		FieldRequestID.Field(qr.ID),
		FieldPriority.Field(qr.Priority.String()),
		FieldQueueDepth.Field(e.queue.Len()),
	)

	ctx, cancel := context.WithCancel(e.runCtx)
	cancelFn = cancel
	e.registry.Add(qr, cancel)
	e.wg.Add(1)
	go e.run(ctx, cancel, qr)

	// The spawned run owns the permit, the cancel, and the result from here.
	held = false
	qr = nil
	cancelFn = nil
	return true
}

// run executes one pipeline under the gate permit the dispatcher acquired
// for it, held for the run's entire duration. Failures never escape: every
// outcome, including panics, becomes exactly one terminal result.
func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, qr *QueuedRequest) {
	defer e.wg.Done()
	defer cancel()
	defer e.gate.Release()

	pc := newPipelineContext(qr)
	defer func() {
		if r := recover(); r != nil {
			e.finish(qr, &ProcessingResult{
				RequestID:      qr.ID,
				Success:        false,
				Error:          fmt.Sprintf("internal failure: %v", r),
				ProcessingTime: time.Since(qr.SubmittedAt),
				Phase:          pc.Phase,
				Metrics:        map[string]string{"error_class": string(ClassInternal)},
			})
		}
	}()

	qr.StartedAt = time.Now()
	out, err := e.pipeline.Process(ctx, pc)
	if out != nil {
		pc = out
	}
	qr.CompletedAt = time.Now()

	pr := &ProcessingResult{
		RequestID:      qr.ID,
		ProcessingTime: qr.CompletedAt.Sub(qr.StartedAt),
		Phase:          pc.Phase,
		Metrics:        pc.Metrics,
	}

	switch {
	case err == nil:
		pr.Success = true
		pr.Output = pc.finalOutput()
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		pr.Error = cancelledMessage
		pr.Metrics["error_class"] = string(ClassCancelled)
	default:
		pr.Error = err.Error()
		var me *ModuleError
		if errors.As(err, &me) {
			pr.Phase = me.Phase
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			pr.Phase = PhaseValidate
		}
		pr.Metrics["error_class"] = string(e.classifier.Classify(err))
	}

	e.finish(qr, pr)
}

// finish removes the run from the registry, stores the single terminal
// result, updates stats, and archives best-effort.
func (e *Engine) finish(qr *QueuedRequest, pr *ProcessingResult) {
	e.registry.Remove(qr.ID)
	// Record stats before publishing so a caller holding the result already
	// sees it counted.
	e.stats.record(pr)
	e.store.Put(pr)

	ctx := context.Background()
	if pr.Error == cancelledMessage {
		capitan.Emit(ctx, RequestCancelled,
			FieldRequestID.Field(qr.ID),
			FieldPhase.Field(pr.Phase),
			FieldDuration.Field(pr.ProcessingTime),
		)
	} else {
		capitan.Emit(ctx, RequestCompleted,
			FieldRequestID.Field(qr.ID),
			FieldPhase.Field(pr.Phase),
			FieldDuration.Field(pr.ProcessingTime),
			FieldActive.Field(e.registry.Count()),
		)
	}

	e.archiveResult(ctx, qr, pr)
}

func (e *Engine) archiveResult(ctx context.Context, qr *QueuedRequest, pr *ProcessingResult) {
	if e.archive == nil {
		return
	}
	record := newResultRecord(qr, pr)
	if err := e.archive.Record(ctx, record); err != nil {
		capitan.Error(ctx, ArchiveFailed,
			FieldRequestID.Field(qr.ID),
			FieldError.Field(err),
		)
		return
	}
	capitan.Emit(ctx, ResultArchived,
		FieldRequestID.Field(qr.ID),
	)
}

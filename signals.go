package cortex

import "github.com/zoobzio/capitan"

// Signal definitions for cortex engine events.
// Signals follow the pattern: cortex.<entity>.<event>.
var (
	// Engine lifecycle signals.
	EngineStarted = capitan.NewSignal(
		"cortex.engine.started",
		"Engine dispatcher loop began accepting requests",
	)
	EngineStopped = capitan.NewSignal(
		"cortex.engine.stopped",
		"Engine drained active executions and shut down",
	)
	DispatcherRecovered = capitan.NewSignal(
		"cortex.engine.dispatcher_recovered",
		"Dispatcher loop survived an unexpected failure and resumed after backoff",
	)

	// Admission signals.
	RequestSubmitted = capitan.NewSignal(
		"cortex.request.submitted",
		"Request admitted into the priority queue",
	)
	RequestRejected = capitan.NewSignal(
		"cortex.request.rejected",
		"Request refused at admission (rate limit or queue capacity)",
	)

	// Execution signals.
	RequestDequeued = capitan.NewSignal(
		"cortex.request.dequeued",
		"Dispatcher pulled a request off the queue for execution",
	)
	PhaseStarted = capitan.NewSignal(
		"cortex.phase.started",
		"Pipeline phase began execution",
	)
	PhaseCompleted = capitan.NewSignal(
		"cortex.phase.completed",
		"Pipeline phase finished successfully",
	)
	PhaseFailed = capitan.NewSignal(
		"cortex.phase.failed",
		"Pipeline phase raised an error",
	)

	// Terminal signals.
	RequestCompleted = capitan.NewSignal(
		"cortex.request.completed",
		"Request reached a terminal result",
	)
	RequestCancelled = capitan.NewSignal(
		"cortex.request.cancelled",
		"Request cancelled before or during execution",
	)

	// Archive signals.
	ResultArchived = capitan.NewSignal(
		"cortex.archive.recorded",
		"Terminal result persisted to the archive",
	)
	ArchiveFailed = capitan.NewSignal(
		"cortex.archive.failed",
		"Best-effort archive write failed",
	)
)

// Field keys for cortex event data.
var (
	// Request metadata.
	FieldRequestID = capitan.NewStringKey("request_id")
	FieldClientID  = capitan.NewStringKey("client_id")
	FieldTier      = capitan.NewStringKey("tier")
	FieldPriority  = capitan.NewStringKey("priority")

	// Phase metadata.
	FieldPhase      = capitan.NewStringKey("phase")
	FieldErrorClass = capitan.NewStringKey("error_class")

	// Engine state.
	FieldQueueDepth = capitan.NewIntKey("queue_depth")
	FieldActive     = capitan.NewIntKey("active")

	// Timing.
	FieldDuration   = capitan.NewDurationKey("duration")
	FieldRetryAfter = capitan.NewDurationKey("retry_after")

	// Error information.
	FieldError = capitan.NewErrorKey("error")
)

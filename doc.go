// Package cortex provides a concurrent cognitive request processor for Go.
//
// cortex admits requests through tiered rate limiting, orders them in a
// bounded priority queue, bounds how many execute simultaneously, and routes
// each through a fixed multi-phase cognitive pipeline, producing a
// per-request result retrievable by id.
//
// # Core Types
//
// The package is built around three core concepts:
//
//   - [Engine] - The processor: admission, scheduling, execution, results
//   - [Request] - One unit of work with its client, tier, and flags
//   - [Modules] - The pluggable cognitive modules the pipeline calls
//
// # Processing Model
//
// Every request passes through the same phase sequence:
//
//	validate -> perceive -> plan -> [execute] -> reflect -> [self_correct] -> [human_approval]
//
// Execute runs only when the request sets AutoExecute. Self-correct runs only
// when reflection scores the output below quality. Human approval runs unless
// the request sets SkipApproval. Phases run sequentially within a request;
// concurrency exists only across requests.
//
// # Usage
//
// Construct an engine with cognitive modules, start it, submit work, and
// collect results by id:
//
//	engine, err := cortex.New(cortex.Config{MaxConcurrent: 8}, cortex.SynapseModules())
//	if err != nil {
//		return err
//	}
//	engine.WithRateLimiter(cortex.NewTierLimiter(time.Minute, cortex.DefaultTierQuotas))
//	if err := engine.Start(); err != nil {
//		return err
//	}
//	defer engine.Stop(context.Background())
//
//	id, err := engine.Submit(ctx, cortex.Request{
//		Text:     "summarize the incident report",
//		ClientID: "client-7",
//		Tier:     cortex.TierPro,
//	}, cortex.PriorityHigh)
//	if err != nil {
//		return err
//	}
//
//	result, err := engine.Result(ctx, id, 30*time.Second)
//
// # Cognitive Modules
//
// [Modules] carries five collaborators. Perception, Planning, and Reflection
// are required; Executor and HumanLoop are optional and fail their phase with
// [ErrNotConfigured] when a request needs them. [SynapseModules] returns a
// full set backed by zyn synapses; the provider resolves per call from the
// module, the context, or the global default set via [SetProvider].
//
// # Observability
//
// The engine emits capitan signals for every lifecycle transition: admission,
// rejection, dequeue, phase entry and exit, completion, cancellation, and
// archival. Hook them for logging or metrics:
//
//	capitan.Hook(cortex.RequestCompleted, func(ctx context.Context, e *capitan.Event) {
//		log.Printf("completed: %v", e.Fields())
//	})
//
// # Persistence
//
// [SoyArchive] persists terminal results to PostgreSQL through soy's
// type-safe query builder. Archival is best-effort and never fails the
// request it records.
package cortex

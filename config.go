package cortex

import "time"

// Default engine tuning. These apply when the corresponding Config field is
// zero.
var (
	// DefaultMaxConcurrent bounds simultaneously executing pipelines.
	DefaultMaxConcurrent = 4

	// DefaultMaxQueueSize bounds the priority queue.
	DefaultMaxQueueSize = 64

	// DefaultShutdownTimeout bounds how long Stop waits for active
	// executions to drain.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultDispatchBackoff is the pause after the dispatcher recovers
	// from an unexpected failure.
	DefaultDispatchBackoff = 100 * time.Millisecond
)

// Config tunes the engine. The zero value is usable: every field falls back
// to its default.
type Config struct {
	// MaxConcurrent is the concurrency gate capacity.
	MaxConcurrent int

	// MaxQueueSize is the priority queue capacity.
	MaxQueueSize int

	// RequestTimeout bounds one full pipeline run. Zero means unbounded.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds Stop's drain of active executions.
	ShutdownTimeout time.Duration

	// DispatchBackoff is the dispatcher's pause after recovering from an
	// unexpected failure.
	DispatchBackoff time.Duration

	// Provider and Model annotate metrics records with the LLM backing the
	// cognitive modules. Informational only.
	Provider string
	Model    string
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.DispatchBackoff <= 0 {
		c.DispatchBackoff = DefaultDispatchBackoff
	}
	return c
}

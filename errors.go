package cortex

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by the engine's public API.
var (
	// ErrQueueFull is returned by Submit when the priority queue is at capacity.
	ErrQueueFull = errors.New("request queue is full")

	// ErrResultTimeout is returned by Result when no terminal result arrives
	// within the caller's wait window. The underlying execution is unaffected.
	ErrResultTimeout = errors.New("timed out waiting for result")

	// ErrEngineStopped is returned by Submit once Stop has been called or
	// before Start.
	ErrEngineStopped = errors.New("engine is not accepting requests")

	// ErrNotConfigured indicates a pipeline phase needs a module that was not
	// injected at construction.
	ErrNotConfigured = errors.New("module not configured")

	// ErrCancelled marks a run that was cancelled before reaching a natural
	// terminal phase.
	ErrCancelled = errors.New("request cancelled")
)

// cancelledMessage is the error string recorded on cancelled results.
const cancelledMessage = "Request cancelled"

// RateLimitError is returned by Submit when the caller has exhausted its
// tier quota. RetryAfter indicates when the current window resets.
type RateLimitError struct {
	ClientID   string
	Tier       Tier
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for client %s (tier %s), retry after %s",
		e.ClientID, e.Tier, e.RetryAfter)
}

// ValidationError is produced by the validate phase. It is never returned to
// the submitter directly; it surfaces inside the stored ProcessingResult
// because validation runs after admission.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "request validation failed"
	}
	return fmt.Sprintf("request validation failed: %v", e.Issues)
}

// ModuleError wraps a failure raised by an injected cognitive module, tagged
// with the pipeline phase at which execution stopped.
type ModuleError struct {
	Phase string
	Err   error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// ErrorClass buckets a pipeline failure for reporting and metrics.
type ErrorClass string

const (
	ClassValidation ErrorClass = "validation"
	ClassModule     ErrorClass = "module"
	ClassTimeout    ErrorClass = "timeout"
	ClassCancelled  ErrorClass = "cancelled"
	ClassInternal   ErrorClass = "internal"
)

// ErrorClassifier maps a pipeline failure to an ErrorClass. The class is
// recorded in the result's metrics map.
type ErrorClassifier interface {
	Classify(err error) ErrorClass
}

// defaultClassifier implements the standard taxonomy.
type defaultClassifier struct{}

func (defaultClassifier) Classify(err error) ErrorClass {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ClassValidation
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return ClassCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	default:
		var me *ModuleError
		if errors.As(err, &me) {
			return ClassModule
		}
		return ClassInternal
	}
}

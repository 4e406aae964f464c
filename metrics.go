package cortex

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// RequestMetric is one per-phase observation delivered to the metrics
// collector.
type RequestMetric struct {
	RequestID      string
	SessionID      string
	WorkspaceID    string
	UserID         string
	Phase          string
	Provider       string
	Model          string
	InputText      string
	ProcessingTime time.Duration
	Success        bool
	ErrorMessage   string
}

// MetricsCollector receives per-phase metric records. Delivery is
// best-effort: collectors must not block the pipeline and their failures are
// never fatal.
type MetricsCollector interface {
	TrackRequest(ctx context.Context, m RequestMetric)
}

// SignalMetrics is the default collector. It re-emits every record as a
// capitan signal so hosts observe phase metrics the same way they observe
// engine events.
type SignalMetrics struct{}

// TrackRequest implements MetricsCollector.
func (SignalMetrics) TrackRequest(ctx context.Context, m RequestMetric) {
	if m.Success {
		capitan.Emit(ctx, PhaseCompleted,
			FieldRequestID.Field(m.RequestID),
			FieldPhase.Field(m.Phase),
			FieldDuration.Field(m.ProcessingTime),
		)
		return
	}
	capitan.Error(ctx, PhaseFailed,
		FieldRequestID.Field(m.RequestID),
		FieldPhase.Field(m.Phase),
		FieldDuration.Field(m.ProcessingTime),
		FieldError.Field(errorString(m.ErrorMessage)),
	)
}

// errorString adapts a message into an error value for the error field key.
type errorString string

func (e errorString) Error() string { return string(e) }

// Stats is a point-in-time snapshot of engine throughput.
type Stats struct {
	Total             int
	Successful        int
	Failed            int
	QueueSize         int
	Active            int
	AvgProcessingTime time.Duration
}

// statCounters aggregates terminal results behind a mutex. Shared between
// the public Stats call and every execution unit's finish path.
type statCounters struct {
	mu         sync.Mutex
	total      int
	successful int
	failed     int
	elapsed    time.Duration
}

func (s *statCounters) record(r *ProcessingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if r.Success {
		s.successful++
	} else {
		s.failed++
	}
	s.elapsed += r.ProcessingTime
}

func (s *statCounters) snapshot() (total, successful, failed int, avg time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg = 0
	if s.total > 0 {
		avg = s.elapsed / time.Duration(s.total)
	}
	return s.total, s.successful, s.failed, avg
}

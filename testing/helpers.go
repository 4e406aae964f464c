// Package cortextest provides test utilities for cortex.
package cortextest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/cortex"
	"github.com/zoobz-io/zyn"
)

// MockProvider implements cortex.Provider without an LLM. It inspects the
// prompt to determine which synapse is calling and returns canned responses,
// so the full synapse module set can run in tests.
type MockProvider struct {
	mu    sync.Mutex
	calls int

	// Intent, Sentiment, and Output customize the canned responses.
	Intent    string
	Sentiment string
	Output    string

	// QualityScore and PassesQuality drive the reflection response.
	QualityScore  float64
	PassesQuality bool

	// ApprovalStatus drives the review classification.
	ApprovalStatus string

	// Err, when set, fails every call.
	Err error
}

// NewMockProvider returns a provider whose responses pass every phase.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Intent:         "assist",
		Sentiment:      "neutral",
		Output:         "mock response",
		QualityScore:   0.9,
		PassesQuality:  true,
		ApprovalStatus: "approved",
	}
}

// Call implements cortex.Provider.
func (m *MockProvider) Call(_ context.Context, messages []zyn.Message, _ float32) (*zyn.ProviderResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	last := messages[len(messages)-1].Content

	switch {
	case strings.Contains(last, "Transform:"):
		return respond(fmt.Sprintf(
			`{"output": %q, "confidence": 0.9, "changes": ["carried out plan"], "reasoning": ["mock"]}`,
			m.Output)), nil

	case strings.Contains(last, "Task: Extract ") && strings.Contains(last, "primary intent"):
		return respond(fmt.Sprintf(
			`{"primary_intent": %q, "entities": {}, "sentiment": %q, "confidence": 0.9}`,
			m.Intent, m.Sentiment)), nil

	case strings.Contains(last, "Task: Extract ") && strings.Contains(last, "execution plan"):
		return respond(fmt.Sprintf(
			`{"goal": %q, "steps": [{"name": "respond", "action": "draft a response"}], "summary": "mock plan"}`,
			m.Intent)), nil

	case strings.Contains(last, "Task: Extract ") && strings.Contains(last, "quality"):
		return respond(fmt.Sprintf(
			`{"score": %f, "passes_quality": %t, "issues": []}`,
			m.QualityScore, m.PassesQuality)), nil

	case strings.Contains(last, "Task:"):
		return respond(fmt.Sprintf(
			`{"primary": %q, "secondary": "", "confidence": 0.9, "reasoning": ["mock review"]}`,
			m.ApprovalStatus)), nil
	}

	return nil, fmt.Errorf("unmatched prompt: %s", last)
}

// Name implements cortex.Provider.
func (m *MockProvider) Name() string {
	return "mock"
}

// Calls reports how many times the provider was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func respond(content string) *zyn.ProviderResponse {
	return &zyn.ProviderResponse{
		Content: content,
		Usage:   zyn.TokenUsage{Prompt: 10, Completion: 20, Total: 30},
	}
}

// RecordingArchive implements cortex.Archive in memory.
type RecordingArchive struct {
	mu      sync.Mutex
	records []*cortex.ResultRecord
}

// NewRecordingArchive creates an empty in-memory archive.
func NewRecordingArchive() *RecordingArchive {
	return &RecordingArchive{}
}

// Record stores the record in memory.
func (a *RecordingArchive) Record(_ context.Context, record *cortex.ResultRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

// GetByRequestID returns the stored record for a request id.
func (a *RecordingArchive) GetByRequestID(_ context.Context, requestID string) (*cortex.ResultRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.records {
		if r.RequestID == requestID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no record for request %s", requestID)
}

// Recent returns stored records completed since the given time, newest first.
func (a *RecordingArchive) Recent(_ context.Context, since time.Time, limit int) ([]*cortex.ResultRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*cortex.ResultRecord, 0, limit)
	for i := len(a.records) - 1; i >= 0 && len(out) < limit; i-- {
		if a.records[i].CompletedAt.After(since) {
			out = append(out, a.records[i])
		}
	}
	return out, nil
}

// Records returns a copy of everything stored so far.
func (a *RecordingArchive) Records() []*cortex.ResultRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*cortex.ResultRecord, len(a.records))
	copy(out, a.records)
	return out
}

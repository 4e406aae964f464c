package cortex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zoobz-io/zyn"
)

// Provider defines the interface for LLM providers backing the synapse
// modules. This matches zyn.Provider for compatibility.
type Provider interface {
	Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error)
	Name() string
}

// Default temperatures for the synapse modules.
var (
	// DefaultReasoningTemperature drives perception, planning, and
	// reflection. Deterministic for consistent outputs.
	DefaultReasoningTemperature = zyn.DefaultTemperatureDeterministic

	// DefaultExecutionTemperature drives the execute phase transform.
	// Creative for richer response generation.
	DefaultExecutionTemperature = zyn.DefaultTemperatureCreative
)

// Context key for provider.
type providerKeyType struct{}

var providerKey = providerKeyType{}

// Global provider fallback.
var (
	globalProvider   Provider
	globalProviderMu sync.RWMutex
)

// ErrNoProvider is returned when no provider can be resolved.
var ErrNoProvider = errors.New("no provider configured: set via context, module-level, or global")

// SetProvider sets the global fallback provider for the synapse modules.
func SetProvider(p Provider) {
	globalProviderMu.Lock()
	defer globalProviderMu.Unlock()
	globalProvider = p
}

// WithProviderContext adds a provider to the context. Context providers take
// precedence over the global default; module-level providers take precedence
// over both.
func WithProviderContext(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey, p)
}

// resolveProvider determines which provider to use: module-level, then
// context, then global.
func resolveProvider(ctx context.Context, moduleProvider Provider) (Provider, error) {
	if moduleProvider != nil {
		return moduleProvider, nil
	}
	if p, ok := ctx.Value(providerKey).(Provider); ok {
		return p, nil
	}
	globalProviderMu.RLock()
	p := globalProvider
	globalProviderMu.RUnlock()
	if p != nil {
		return p, nil
	}
	return nil, ErrNoProvider
}

// SynapseModules returns the full cognitive module set backed by zyn
// synapses, resolving the provider per call.
func SynapseModules() Modules {
	return Modules{
		Perception: NewSynapsePerception(),
		Planning:   NewSynapsePlanner(),
		Executor:   NewSynapseExecutor(),
		Reflection: NewSynapseReflector(),
		HumanLoop:  NewSynapseReviewer(),
	}
}

// renderUserContext folds caller context into the text sent to a synapse.
// Keys are sorted for deterministic prompts.
func renderUserContext(text string, userContext map[string]string) string {
	if len(userContext) == 0 {
		return text
	}
	keys := make([]string, 0, len(userContext))
	for k := range userContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\ncontext:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, userContext[k])
	}
	return b.String()
}

// SynapsePerception implements Perception with a zyn extraction synapse.
type SynapsePerception struct {
	provider    Provider
	temperature float32
}

func NewSynapsePerception() *SynapsePerception {
	return &SynapsePerception{temperature: DefaultReasoningTemperature}
}

// WithProvider sets the provider for this module, taking precedence over
// context and global providers.
func (s *SynapsePerception) WithProvider(p Provider) *SynapsePerception {
	s.provider = p
	return s
}

func (s *SynapsePerception) Perceive(ctx context.Context, text string, userContext map[string]string) (*PerceivedInput, error) {
	provider, err := resolveProvider(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("perception: %w", err)
	}

	synapse, err := zyn.Extract[PerceivedInput](
		"the primary intent, entities, and sentiment of the user's request",
		provider,
	)
	if err != nil {
		return nil, fmt.Errorf("perception: failed to create extract synapse: %w", err)
	}

	perceived, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.ExtractionInput{
		Text:        renderUserContext(text, userContext),
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("perception: extract synapse execution failed: %w", err)
	}
	return &perceived, nil
}

// SynapsePlanner implements Planning with a zyn extraction synapse.
type SynapsePlanner struct {
	provider    Provider
	temperature float32
}

func NewSynapsePlanner() *SynapsePlanner {
	return &SynapsePlanner{temperature: DefaultReasoningTemperature}
}

func (s *SynapsePlanner) WithProvider(p Provider) *SynapsePlanner {
	s.provider = p
	return s
}

func (s *SynapsePlanner) CreatePlan(ctx context.Context, goal string, input *PerceivedInput) (*ExecutionPlan, error) {
	provider, err := resolveProvider(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	synapse, err := zyn.Extract[ExecutionPlan](
		"an execution plan with ordered steps and a summary that accomplishes the goal",
		provider,
	)
	if err != nil {
		return nil, fmt.Errorf("planning: failed to create extract synapse: %w", err)
	}

	var b strings.Builder
	b.WriteString("goal: ")
	b.WriteString(goal)
	if input != nil {
		b.WriteString("\n\nperceived intent: ")
		b.WriteString(input.PrimaryIntent)
		if input.Sentiment != "" {
			b.WriteString("\nsentiment: ")
			b.WriteString(input.Sentiment)
		}
		for k, v := range input.Entities {
			fmt.Fprintf(&b, "\n%s: %s", k, v)
		}
	}

	plan, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.ExtractionInput{
		Text:        b.String(),
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("planning: extract synapse execution failed: %w", err)
	}
	return &plan, nil
}

// SynapseExecutor implements Executor with a zyn transform synapse: the plan
// is carried out as a single generation pass producing the response text.
type SynapseExecutor struct {
	provider    Provider
	temperature float32
}

func NewSynapseExecutor() *SynapseExecutor {
	return &SynapseExecutor{temperature: DefaultExecutionTemperature}
}

func (s *SynapseExecutor) WithProvider(p Provider) *SynapseExecutor {
	s.provider = p
	return s
}

func (s *SynapseExecutor) Execute(ctx context.Context, plan *ExecutionPlan) (string, error) {
	provider, err := resolveProvider(ctx, s.provider)
	if err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}

	synapse, err := zyn.Transform(
		"Carry out the plan and produce the final response text",
		provider,
	)
	if err != nil {
		return "", fmt.Errorf("execute: failed to create transform synapse: %w", err)
	}

	result, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.TransformInput{
		Text:        plan.Render(),
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("execute: transform synapse execution failed: %w", err)
	}
	return result, nil
}

// SynapseReflector implements Reflection with a zyn extraction synapse.
type SynapseReflector struct {
	provider    Provider
	temperature float32
}

func NewSynapseReflector() *SynapseReflector {
	return &SynapseReflector{temperature: DefaultReasoningTemperature}
}

func (s *SynapseReflector) WithProvider(p Provider) *SynapseReflector {
	s.provider = p
	return s
}

func (s *SynapseReflector) Evaluate(ctx context.Context, request, output string, userContext map[string]string) (*QualityScore, error) {
	provider, err := resolveProvider(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("reflection: %w", err)
	}

	synapse, err := zyn.Extract[QualityScore](
		"a quality evaluation of the response: a score in [0,1], whether it passes quality, and any issues",
		provider,
	)
	if err != nil {
		return nil, fmt.Errorf("reflection: failed to create extract synapse: %w", err)
	}

	text := fmt.Sprintf("request:\n%s\n\nresponse:\n%s", request, output)
	score, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.ExtractionInput{
		Text:        renderUserContext(text, userContext),
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("reflection: extract synapse execution failed: %w", err)
	}
	return &score, nil
}

// SynapseReviewer implements HumanLoop with a zyn classification synapse:
// a policy reviewer standing in for a human approver. Hosts needing a real
// human in the loop inject their own HumanLoop.
type SynapseReviewer struct {
	provider    Provider
	temperature float32
}

func NewSynapseReviewer() *SynapseReviewer {
	return &SynapseReviewer{temperature: DefaultReasoningTemperature}
}

func (s *SynapseReviewer) WithProvider(p Provider) *SynapseReviewer {
	s.provider = p
	return s
}

func (s *SynapseReviewer) Review(ctx context.Context, content string, plan *ExecutionPlan, score *QualityScore, _ map[string]string) (*Approval, error) {
	provider, err := resolveProvider(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("human_approval: %w", err)
	}

	synapse, err := zyn.Classification(
		"Should this response be delivered to the user?",
		[]string{string(ApprovalApproved), string(ApprovalRejected), string(ApprovalNeedsRevision)},
		provider,
	)
	if err != nil {
		return nil, fmt.Errorf("human_approval: failed to create classification synapse: %w", err)
	}

	var b strings.Builder
	b.WriteString(content)
	if plan != nil {
		b.WriteString("\n\nplan:\n")
		b.WriteString(plan.Render())
	}
	if score != nil {
		fmt.Fprintf(&b, "\n\nquality score: %.2f (passes: %t)", score.Score, score.PassesQuality)
	}

	resp, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.ClassificationInput{
		Subject:     "Should this response be delivered to the user?",
		Context:     b.String(),
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("human_approval: classification synapse execution failed: %w", err)
	}

	return &Approval{
		Status:     ApprovalStatus(resp.Primary),
		Confidence: float64(resp.Confidence),
		Reasons:    resp.Reasoning,
	}, nil
}

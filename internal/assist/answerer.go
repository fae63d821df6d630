// Package assist implements the pipeline's remote call adapters on top of
// the provider packages: an [Answerer] that prompts an LLM as the candidate,
// and a [Translator] that renders the interviewer's words in the user's
// language.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/interviewpilot/internal/observe"
	"github.com/MrWong99/interviewpilot/internal/pipeline"
	"github.com/MrWong99/interviewpilot/pkg/provider/llm"
)

// DefaultHistoryTurns is the turn count named in the prompt header.
const DefaultHistoryTurns = pipeline.DefaultHistorySize

// Answerer composes interview answers with an LLM. The persona can be
// swapped at runtime with SetSystemPrompt.
type Answerer struct {
	llm          llm.Provider
	providerName string
	temperature  float64
	maxTokens    int
	turns        int
	metrics      *observe.Metrics

	mu           sync.RWMutex
	systemPrompt string
}

var _ pipeline.Answerer = (*Answerer)(nil)

// AnswererOption configures an Answerer.
type AnswererOption func(*Answerer)

// WithSystemPrompt sets the persona. Empty keeps [DefaultSystemPrompt].
func WithSystemPrompt(s string) AnswererOption {
	return func(a *Answerer) {
		if s != "" {
			a.systemPrompt = s
		}
	}
}

// WithTemperature sets the sampling temperature. Zero keeps the provider
// default.
func WithTemperature(t float64) AnswererOption {
	return func(a *Answerer) { a.temperature = t }
}

// WithMaxTokens caps the answer length. The value is clamped to the model's
// output limit.
func WithMaxTokens(n int) AnswererOption {
	return func(a *Answerer) { a.maxTokens = n }
}

// WithHistoryTurns sets the turn count shown in the prompt header.
func WithHistoryTurns(n int) AnswererOption {
	return func(a *Answerer) {
		if n > 0 {
			a.turns = n
		}
	}
}

// WithProviderName labels provider metrics. Defaults to "llm".
func WithProviderName(name string) AnswererOption {
	return func(a *Answerer) { a.providerName = name }
}

// WithAnswererMetrics sets the metrics recorder.
func WithAnswererMetrics(m *observe.Metrics) AnswererOption {
	return func(a *Answerer) { a.metrics = m }
}

// NewAnswerer returns an Answerer backed by p.
func NewAnswerer(p llm.Provider, opts ...AnswererOption) (*Answerer, error) {
	if p == nil {
		return nil, errors.New("assist: llm provider must not be nil")
	}
	a := &Answerer{
		llm:          p,
		providerName: "llm",
		turns:        DefaultHistoryTurns,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, o := range opts {
		o(a)
	}
	a.maxTokens = p.Capabilities().ClampMaxTokens(a.maxTokens)
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a, nil
}

// SystemPrompt returns the current persona.
func (a *Answerer) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.systemPrompt
}

// SetSystemPrompt replaces the persona for subsequent answers. Empty restores
// [DefaultSystemPrompt].
func (a *Answerer) SetSystemPrompt(s string) {
	if s == "" {
		s = DefaultSystemPrompt
	}
	a.mu.Lock()
	a.systemPrompt = s
	a.mu.Unlock()
}

// Answer implements pipeline.Answerer.
func (a *Answerer) Answer(ctx context.Context, text, history string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "assist.answer",
		trace.WithAttributes(observe.ProviderKey.String(a.providerName)),
	)
	defer span.End()

	req := llm.CompletionRequest{
		SystemPrompt: a.SystemPrompt(),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserPrompt(text, history, a.turns)},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}

	start := time.Now()
	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		a.metrics.RecordProviderRequest(ctx, a.providerName, "llm", "error", time.Since(start))
		a.metrics.RecordProviderError(ctx, a.providerName, "llm")
		observe.FailSpan(span, err)
		return "", fmt.Errorf("assist: answer: %w", err)
	}
	a.metrics.RecordProviderRequest(ctx, a.providerName, "llm", "ok", time.Since(start))
	if resp == nil {
		return "", errors.New("assist: answer: empty response")
	}
	span.SetAttributes(attribute.Int("tokens.total", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Content), nil
}

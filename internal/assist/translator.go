package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/interviewpilot/internal/observe"
	"github.com/MrWong99/interviewpilot/internal/pipeline"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

// DefaultTargetLanguage is the language interviewer utterances are
// translated into when none is configured.
const DefaultTargetLanguage = "TR"

// Translator adapts a translate.Provider to pipeline.Translator.
type Translator struct {
	provider     translate.Provider
	providerName string
	target       string
	source       string
	metrics      *observe.Metrics
}

var _ pipeline.Translator = (*Translator)(nil)

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithTargetLanguage sets the target language code.
func WithTargetLanguage(lang string) TranslatorOption {
	return func(t *Translator) {
		if lang != "" {
			t.target = strings.ToUpper(lang)
		}
	}
}

// WithSourceLanguage pins the source language instead of auto-detecting it.
func WithSourceLanguage(lang string) TranslatorOption {
	return func(t *Translator) { t.source = strings.ToUpper(lang) }
}

// WithTranslateProviderName labels provider metrics. Defaults to "translate".
func WithTranslateProviderName(name string) TranslatorOption {
	return func(t *Translator) { t.providerName = name }
}

// WithTranslatorMetrics sets the metrics recorder.
func WithTranslatorMetrics(m *observe.Metrics) TranslatorOption {
	return func(t *Translator) { t.metrics = m }
}

// NewTranslator returns a Translator backed by p.
func NewTranslator(p translate.Provider, opts ...TranslatorOption) (*Translator, error) {
	if p == nil {
		return nil, errors.New("assist: translate provider must not be nil")
	}
	t := &Translator{provider: p, providerName: "translate", target: DefaultTargetLanguage}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t, nil
}

// TargetLanguage returns the configured target language code.
func (t *Translator) TargetLanguage() string { return t.target }

// Translate implements pipeline.Translator.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "assist.translate",
		trace.WithAttributes(
			observe.ProviderKey.String(t.providerName),
			attribute.String("target_lang", t.target),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := t.provider.Translate(ctx, translate.Request{
		Text:       text,
		TargetLang: t.target,
		SourceLang: t.source,
	})
	if err != nil {
		t.metrics.RecordProviderRequest(ctx, t.providerName, "translate", "error", time.Since(start))
		t.metrics.RecordProviderError(ctx, t.providerName, "translate")
		observe.FailSpan(span, err)
		return "", fmt.Errorf("assist: translate: %w", err)
	}
	t.metrics.RecordProviderRequest(ctx, t.providerName, "translate", "ok", time.Since(start))
	return res.Text, nil
}

package resilience

import (
	"context"

	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] with failover, typically
// from a dedicated translation service to an LLM-backed translator.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional translation provider.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate sends req to the first healthy provider.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(p translate.Provider) (translate.Result, error) {
		return p.Translate(ctx, req)
	})
}

// States reports the breaker state of each backend.
func (f *TranslateFallback) States() []EntryState { return f.group.States() }

// Healthy reports whether any backend accepts calls.
func (f *TranslateFallback) Healthy() bool { return f.group.Healthy() }

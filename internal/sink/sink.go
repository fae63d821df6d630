// Package sink delivers pipeline results and live transcript previews to the
// user: a plain-text console renderer and a websocket feed for browser
// overlays. [Multi] fans one stream out to several sinks.
package sink

import (
	"context"

	"github.com/MrWong99/interviewpilot/internal/pipeline"
	"github.com/MrWong99/interviewpilot/internal/speech"
)

// Sink is an output surface. All methods are called from pipeline or
// aggregator goroutines and must not block.
type Sink interface {
	pipeline.Sink

	// OnPreview shows live transcript text or a status line.
	OnPreview(kind speech.PreviewKind, text string)

	// Clear removes everything shown so far.
	Clear()
}

// Multi forwards every call to each contained sink in order.
type Multi []Sink

var _ Sink = Multi(nil)

// OnResult implements [pipeline.Sink].
func (m Multi) OnResult(ctx context.Context, r pipeline.Result) {
	for _, s := range m {
		s.OnResult(ctx, r)
	}
}

// OnPreview implements [Sink]. Its method value satisfies
// [speech.PreviewFunc].
func (m Multi) OnPreview(kind speech.PreviewKind, text string) {
	for _, s := range m {
		s.OnPreview(kind, text)
	}
}

// Clear implements [Sink].
func (m Multi) Clear() {
	for _, s := range m {
		s.Clear()
	}
}

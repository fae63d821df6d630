// Package translate defines the Provider interface for machine translation
// backends.
//
// A translation provider turns one piece of text into a target language. The
// assistant uses it to show the interviewer's question in the user's native
// language next to the suggested answer.
//
// Implementations must be safe for concurrent use.
package translate

import "context"

// Request describes a single translation.
type Request struct {
	// Text is the source text.
	Text string

	// TargetLang is the target language code (e.g., "TR", "DE", "EN-US").
	TargetLang string

	// SourceLang is the source language code. Empty lets the provider detect it.
	SourceLang string
}

// Result is the outcome of a translation.
type Result struct {
	// Text is the translated text.
	Text string

	// DetectedSourceLang is the source language reported by the provider, if any.
	DetectedSourceLang string
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate translates req.Text into req.TargetLang.
	Translate(ctx context.Context, req Request) (Result, error)
}

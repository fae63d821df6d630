package pipeline

import (
	"context"
	"time"
)

// Translator translates an utterance into the user's language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Answerer composes a suggested reply to text. history holds the most recent
// utterances joined by newlines, text included.
type Answerer interface {
	Answer(ctx context.Context, text, history string) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, text string) (string, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// AnswererFunc adapts a function to Answerer.
type AnswererFunc func(ctx context.Context, text, history string) (string, error)

// Answer calls f.
func (f AnswererFunc) Answer(ctx context.Context, text, history string) (string, error) {
	return f(ctx, text, history)
}

// DisabledTranslator always fails with ErrUnavailable.
type DisabledTranslator struct{}

// Translate implements Translator.
func (DisabledTranslator) Translate(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

// DisabledAnswerer always fails with ErrUnavailable.
type DisabledAnswerer struct{}

// Answer implements Answerer.
func (DisabledAnswerer) Answer(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

var (
	_ Translator = DisabledTranslator{}
	_ Answerer   = DisabledAnswerer{}
)

type callResult struct {
	text string
	err  error
}

// callWithTimeout runs fn under a deadline of d and classifies the result.
// If fn ignores its context the call is abandoned at the deadline; its
// eventual return is discarded.
func callWithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) (string, error)) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		text, err := fn(callCtx)
		done <- callResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		return classify(r.text, r.err, callCtx.Err())
	case <-callCtx.Done():
		return classify("", callCtx.Err(), callCtx.Err())
	}
}

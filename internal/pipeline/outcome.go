package pipeline

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by adapters that could not be constructed, for
// example because their credential is missing.
var ErrUnavailable = errors.New("pipeline: adapter unavailable")

// Status classifies how a remote call ended.
type Status int

const (
	// StatusOK means the call returned text within its deadline.
	StatusOK Status = iota

	// StatusTimedOut means the deadline elapsed before the call returned.
	StatusTimedOut

	// StatusFailed means the call returned an error.
	StatusFailed

	// StatusUnavailable means the adapter is disabled.
	StatusUnavailable
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimedOut:
		return "timed_out"
	case StatusFailed:
		return "failed"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the result of one adapter call before placeholder substitution.
type Outcome struct {
	Status Status
	Text   string
	Err    error
}

// classify maps a call's return values to an Outcome. deadlineErr is the
// error of the per-call timeout context.
func classify(text string, err, deadlineErr error) Outcome {
	switch {
	case err == nil:
		return Outcome{Status: StatusOK, Text: text}
	case errors.Is(err, ErrUnavailable):
		return Outcome{Status: StatusUnavailable, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(deadlineErr, context.DeadlineExceeded):
		return Outcome{Status: StatusTimedOut, Err: err}
	default:
		return Outcome{Status: StatusFailed, Err: err}
	}
}

// Placeholders holds the substitute text shown for each non-OK outcome of one
// adapter.
type Placeholders struct {
	TimedOut    string
	Failed      string
	Unavailable string
}

// Resolve returns the text to display for o.
func (p Placeholders) Resolve(o Outcome) string {
	switch o.Status {
	case StatusOK:
		return o.Text
	case StatusTimedOut:
		return p.TimedOut
	case StatusUnavailable:
		return p.Unavailable
	default:
		return p.Failed
	}
}

// DefaultTranslationPlaceholders are shown in place of a missing translation.
func DefaultTranslationPlaceholders() Placeholders {
	return Placeholders{
		TimedOut:    "...",
		Failed:      "Çeviri Hatası (Transl. Error)",
		Unavailable: "DeepL Yok (Not Found)",
	}
}

// DefaultAnswerPlaceholders are shown in place of a missing answer.
func DefaultAnswerPlaceholders() Placeholders {
	return Placeholders{
		TimedOut:    "...",
		Failed:      "...",
		Unavailable: "API Hatası (API Error)",
	}
}

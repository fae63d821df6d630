package speech

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/interviewpilot/pkg/audio"
	"github.com/MrWong99/interviewpilot/pkg/provider/stt"
)

// ListenOption configures [Listen].
type ListenOption func(*listenConfig)

type listenConfig struct {
	correct func(string) string
}

// WithCorrection rewrites the text of final transcripts before they reach
// the aggregator. Partials are shown as recognized.
func WithCorrection(fn func(string) string) ListenOption {
	return func(c *listenConfig) { c.correct = fn }
}

// Listen forwards the session's transcripts to agg until both transcript
// channels close or ctx is done.
func Listen(ctx context.Context, sess stt.SessionHandle, agg *Aggregator, opts ...ListenOption) error {
	var cfg listenConfig
	for _, o := range opts {
		o(&cfg)
	}
	partials, finals := sess.Partials(), sess.Finals()
	for partials != nil || finals != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			agg.Feed(Fragment{Kind: Partial, Text: t.Text})
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			text := t.Text
			if cfg.correct != nil {
				if c := cfg.correct(text); c != text {
					slog.Debug("speech: transcript corrected", "from", text, "to", c)
					text = c
				}
			}
			agg.Feed(Fragment{Kind: Final, Text: text})
		}
	}
	return nil
}

// Pump sends captured frames to the session while listening reports true.
// Frames captured while paused are dropped. It returns when frames closes or
// ctx is done.
func Pump(ctx context.Context, frames <-chan audio.Frame, sess stt.SessionHandle, listening func() bool) error {
	var dropped int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				if dropped > 0 {
					slog.Debug("speech: frames dropped while paused", "count", dropped)
				}
				return nil
			}
			if !listening() {
				dropped++
				continue
			}
			if err := sess.SendAudio(f.Data); err != nil {
				if errors.Is(err, stt.ErrSessionClosed) {
					return nil
				}
				return err
			}
		}
	}
}

// Package speech turns a stream of partial and final recognizer fragments
// into discrete utterances.
//
// The [Aggregator] buffers final fragments and debounces on silence: a final
// fragment arms a short deadline, a partial fragment (speech still arriving)
// arms a longer one, and any new fragment replaces the pending deadline. When
// a deadline elapses untouched the buffered text is submitted as one
// utterance. Pausing or resetting flushes immediately.
//
// All buffer and timer state is owned by the goroutine running
// [Aggregator.Run]; the public methods send commands to it.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/interviewpilot/internal/observe"
)

// Default debounce settings.
const (
	DefaultPartialSilence = 2000 * time.Millisecond
	DefaultFinalSilence   = 1000 * time.Millisecond
	DefaultMinFinalLength = 2
)

// ErrStopped is returned by synchronous calls once Run has exited.
var ErrStopped = errors.New("speech: aggregator stopped")

// Kind distinguishes interim from committed fragments.
type Kind int

const (
	// Partial is an interim hypothesis that may still change.
	Partial Kind = iota
	// Final is a committed segment.
	Final
)

// String returns "partial" or "final".
func (k Kind) String() string {
	if k == Final {
		return "final"
	}
	return "partial"
}

// Fragment is one recognizer event.
type Fragment struct {
	Kind Kind
	Text string
}

// Submitter receives finished utterances. *pipeline.Pipeline satisfies it.
type Submitter interface {
	Submit(text string) uint64
}

// PreviewKind tells a preview consumer what the text represents.
type PreviewKind int

const (
	// PreviewSpeech is the buffered text plus the live partial.
	PreviewSpeech PreviewKind = iota
	// PreviewWaiting is shown after an utterance was submitted.
	PreviewWaiting
	// PreviewIdle clears the preview.
	PreviewIdle
)

// PreviewFunc is called from the aggregator goroutine with live transcript
// text. It must not block.
type PreviewFunc func(kind PreviewKind, text string)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSilence sets the debounce deadlines after partial and final fragments.
// Non-positive values keep the defaults.
func WithSilence(partial, final time.Duration) Option {
	return func(a *Aggregator) {
		if partial > 0 {
			a.partialSilence = partial
		}
		if final > 0 {
			a.finalSilence = final
		}
	}
}

// WithMinFinalLength sets the shortest final fragment that is buffered.
func WithMinFinalLength(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.minFinalLen = n
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithPreview registers a preview callback.
func WithPreview(fn PreviewFunc) Option {
	return func(a *Aggregator) { a.preview = fn }
}

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithListening sets the initial listening state. The default is true.
func WithListening(on bool) Option {
	return func(a *Aggregator) { a.listening.Store(on) }
}

// WaitingText is the preview shown after an utterance has been submitted.
const WaitingText = "Waiting for answer..."

type command any

type feedCmd struct{ f Fragment }

type fireCmd struct{ seq uint64 }

type listenCmd struct {
	on   bool
	done chan struct{}
}

type resetCmd struct{ done chan struct{} }

type snapshotCmd struct{ reply chan string }

// Aggregator is the two-tier silence debouncer.
type Aggregator struct {
	submit Submitter

	partialSilence time.Duration
	finalSilence   time.Duration
	minFinalLen    int
	clock          Clock
	preview        PreviewFunc
	metrics        *observe.Metrics

	cmds    chan command
	stopped chan struct{}

	listening atomic.Bool

	// Owned by Run.
	buf   strings.Builder
	timer Timer
	seq   uint64
}

// NewAggregator creates an Aggregator that hands utterances to submit.
func NewAggregator(submit Submitter, opts ...Option) *Aggregator {
	a := &Aggregator{
		submit:         submit,
		partialSilence: DefaultPartialSilence,
		finalSilence:   DefaultFinalSilence,
		minFinalLen:    DefaultMinFinalLength,
		clock:          SystemClock{},
		cmds:           make(chan command, 64),
		stopped:        make(chan struct{}),
	}
	a.listening.Store(true)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Listening reports whether fragments are currently accepted.
func (a *Aggregator) Listening() bool { return a.listening.Load() }

// Feed delivers a fragment. It does not wait for processing. Fragments fed
// while paused are ignored.
func (a *Aggregator) Feed(f Fragment) {
	a.send(feedCmd{f: f})
}

// SetListening pauses or resumes the aggregator. Pausing flushes the buffer
// and cancels the pending deadline before it returns.
func (a *Aggregator) SetListening(ctx context.Context, on bool) error {
	return a.call(ctx, listenCmd{on: on, done: make(chan struct{})})
}

// Reset flushes the buffer, clears any remainder and cancels the pending
// deadline. It returns once that has happened.
func (a *Aggregator) Reset(ctx context.Context) error {
	return a.call(ctx, resetCmd{done: make(chan struct{})})
}

// Buffer returns the text buffered so far. It also acts as a barrier: every
// command sent before it has been processed when it returns.
func (a *Aggregator) Buffer(ctx context.Context) (string, error) {
	reply := make(chan string, 1)
	if err := a.sendCtx(ctx, snapshotCmd{reply: reply}); err != nil {
		return "", err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-a.stopped:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run processes commands until ctx is cancelled. Pending text is dropped on
// exit.
func (a *Aggregator) Run(ctx context.Context) error {
	defer close(a.stopped)
	defer a.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-a.cmds:
			a.handle(ctx, c)
		}
	}
}

func (a *Aggregator) handle(ctx context.Context, c command) {
	switch c := c.(type) {
	case feedCmd:
		a.onFragment(c.f)
	case fireCmd:
		// A fire that raced with a restart or cancel carries an old seq.
		if c.seq == a.seq && a.timer != nil {
			a.timer = nil
			a.flush(ctx)
		}
	case listenCmd:
		was := a.listening.Swap(c.on)
		if was && !c.on {
			a.stopTimer()
			a.flush(ctx)
			a.buf.Reset()
			a.emitPreview(PreviewIdle, "")
		}
		a.metrics.SetListening(ctx, was, c.on)
		slog.Info("speech: listening changed", "listening", c.on)
		close(c.done)
	case resetCmd:
		a.stopTimer()
		a.flush(ctx)
		a.buf.Reset()
		a.emitPreview(PreviewIdle, "")
		close(c.done)
	case snapshotCmd:
		c.reply <- a.buf.String()
	}
}

func (a *Aggregator) onFragment(f Fragment) {
	if !a.listening.Load() {
		return
	}
	switch f.Kind {
	case Partial:
		a.emitPreview(PreviewSpeech, joinPreview(a.buf.String(), f.Text)+"...")
		a.restartTimer(a.partialSilence)
	case Final:
		text := strings.TrimSpace(f.Text)
		if utf8.RuneCountInString(text) < a.minFinalLen {
			return
		}
		a.buf.WriteString(text)
		a.buf.WriteByte(' ')
		a.emitPreview(PreviewSpeech, joinPreview(a.buf.String(), "")+"...")
		a.restartTimer(a.finalSilence)
	}
}

func joinPreview(buffered, partial string) string {
	buffered = strings.TrimSpace(buffered)
	partial = strings.TrimSpace(partial)
	switch {
	case buffered == "":
		return partial
	case partial == "":
		return buffered
	default:
		return buffered + " " + partial
	}
}

func (a *Aggregator) flush(ctx context.Context) {
	text := strings.TrimSpace(a.buf.String())
	if text == "" {
		return
	}
	a.buf.Reset()
	gen := a.submit.Submit(text)
	a.metrics.RecordUtterance(ctx)
	slog.Debug("speech: utterance submitted", "generation", gen, "chars", len(text))
	a.emitPreview(PreviewWaiting, WaitingText)
}

func (a *Aggregator) restartTimer(d time.Duration) {
	a.stopTimer()
	a.seq++
	seq := a.seq
	a.timer = a.clock.AfterFunc(d, func() { a.send(fireCmd{seq: seq}) })
}

func (a *Aggregator) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	// Invalidate a fire that is already queued.
	a.seq++
}

func (a *Aggregator) emitPreview(kind PreviewKind, text string) {
	if a.preview != nil {
		a.preview(kind, text)
	}
}

func (a *Aggregator) send(c command) {
	select {
	case a.cmds <- c:
	case <-a.stopped:
	}
}

func (a *Aggregator) sendCtx(ctx context.Context, c command) error {
	select {
	case a.cmds <- c:
		return nil
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

type doneCmd interface{ doneCh() chan struct{} }

func (c listenCmd) doneCh() chan struct{} { return c.done }
func (c resetCmd) doneCh() chan struct{}  { return c.done }

func (a *Aggregator) call(ctx context.Context, c doneCmd) error {
	if err := a.sendCtx(ctx, c); err != nil {
		return err
	}
	select {
	case <-c.doneCh():
		return nil
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

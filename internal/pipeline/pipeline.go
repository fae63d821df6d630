// Package pipeline turns finalized utterances into translated, answered
// results while guaranteeing that only the most recent utterance is ever
// surfaced.
//
// Submissions land in a single-slot mailbox stamped with a generation number.
// A newer submission or a [Pipeline.Reset] bumps the generation, which makes
// any older task stale. One worker goroutine ([Pipeline.Run]) drains the
// mailbox, runs the translation and answer calls concurrently under separate
// deadlines, and emits the result only if its generation is still current.
// In-flight calls are never aborted on supersession; their result is simply
// discarded.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/interviewpilot/internal/observe"
)

// Default timeouts and limits.
const (
	DefaultTranslateTimeout = 4 * time.Second
	DefaultAnswerTimeout    = 7 * time.Second
	DefaultSpeakerLabel     = "Interviewer"

	// minAnswerLen is the shortest answer worth showing.
	minAnswerLen = 2
)

// Result is an emitted utterance with its translation and suggested answer.
type Result struct {
	ID                uuid.UUID
	Generation        uint64
	Original          string
	Translation       string
	Answer            string
	TranslationStatus Status
	AnswerStatus      Status
	CreatedAt         time.Time
}

// Sink receives results from the worker goroutine. OnResult runs while the
// pipeline holds its generation lock, so implementations must return quickly
// and must not call back into the Pipeline.
type Sink interface {
	OnResult(ctx context.Context, r Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Result)

// OnResult calls f.
func (f SinkFunc) OnResult(ctx context.Context, r Result) { f(ctx, r) }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeouts sets the per-call deadlines. Non-positive values keep the
// defaults.
func WithTimeouts(translate, answer time.Duration) Option {
	return func(p *Pipeline) {
		if translate > 0 {
			p.translateTimeout = translate
		}
		if answer > 0 {
			p.answerTimeout = answer
		}
	}
}

// WithHistorySize sets the number of utterances kept as answer context.
func WithHistorySize(n int) Option {
	return func(p *Pipeline) { p.history = NewHistory(n) }
}

// WithSpeakerLabel sets the prefix written before each history entry.
func WithSpeakerLabel(label string) Option {
	return func(p *Pipeline) {
		if label != "" {
			p.speakerLabel = label
		}
	}
}

// WithPlaceholders sets the substitute texts for failed calls.
func WithPlaceholders(translation, answer Placeholders) Option {
	return func(p *Pipeline) { p.SetPlaceholders(translation, answer) }
}

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracerProvider sets where pipeline spans are recorded. Defaults to the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) { p.tracer = observe.TracerFrom(tp) }
}

// WithClock overrides the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline is the stale-request-cancelling task pipeline. Submit and Reset
// are safe to call from any goroutine; Run must be called exactly once.
type Pipeline struct {
	translator Translator
	answerer   Answerer
	sink       Sink

	translateTimeout time.Duration
	answerTimeout    time.Duration
	speakerLabel     string
	placeholders     atomic.Pointer[placeholderSet]
	metrics          *observe.Metrics
	tracer           trace.Tracer
	now              func() time.Time

	box *mailbox

	// history is owned by the worker goroutine.
	history *History

	running atomic.Bool
	lastRun atomic.Int64
}

// New creates a Pipeline. Nil adapters are replaced by their disabled
// variants; a nil sink discards results.
func New(translator Translator, answerer Answerer, sink Sink, opts ...Option) *Pipeline {
	if translator == nil {
		translator = DisabledTranslator{}
	}
	if answerer == nil {
		answerer = DisabledAnswerer{}
	}
	if sink == nil {
		sink = SinkFunc(func(context.Context, Result) {})
	}
	p := &Pipeline{
		translator:       translator,
		answerer:         answerer,
		sink:             sink,
		translateTimeout: DefaultTranslateTimeout,
		answerTimeout:    DefaultAnswerTimeout,
		speakerLabel:     DefaultSpeakerLabel,
		now:              time.Now,
		box:              newMailbox(),
		history:          NewHistory(DefaultHistorySize),
	}
	p.SetPlaceholders(DefaultTranslationPlaceholders(), DefaultAnswerPlaceholders())
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.tracer == nil {
		p.tracer = observe.Tracer()
	}
	return p
}

// Submit enqueues text, replacing any task not yet picked up by the worker,
// and returns the task's generation. Every call advances the generation, so
// all earlier tasks become stale. Blank text is ignored and returns the
// current generation.
func (p *Pipeline) Submit(text string) uint64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return p.box.current()
	}
	gen := p.box.put(text)
	slog.Debug("pipeline: task submitted", "generation", gen, "chars", len(text))
	return gen
}

// Reset drops the pending task, invalidates in-flight work and clears the
// conversation history. No result from a task submitted before Reset is
// emitted afterwards.
func (p *Pipeline) Reset() {
	gen := p.box.reset()
	slog.Debug("pipeline: reset", "generation", gen)
}

type placeholderSet struct{ translation, answer Placeholders }

// SetPlaceholders replaces the substitute texts. It takes effect for the next
// task the worker resolves.
func (p *Pipeline) SetPlaceholders(translation, answer Placeholders) {
	p.placeholders.Store(&placeholderSet{translation: translation, answer: answer})
}

// Placeholders returns the substitute texts in use.
func (p *Pipeline) Placeholders() (translation, answer Placeholders) {
	ph := p.placeholders.Load()
	return ph.translation, ph.answer
}

// Generation returns the current generation counter.
func (p *Pipeline) Generation() uint64 { return p.box.current() }

// Running reports whether the worker loop is active.
func (p *Pipeline) Running() bool { return p.running.Load() }

// LastActivity returns when the worker last finished a task, or the zero time.
func (p *Pipeline) LastActivity() time.Time {
	ns := p.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run is the worker loop. It blocks until ctx is cancelled and returns
// ctx.Err().
func (p *Pipeline) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	for {
		task, clearHistory, err := p.box.wait(ctx)
		if clearHistory {
			p.history.Clear()
		}
		if err != nil {
			return err
		}
		p.process(ctx, task)
		p.lastRun.Store(p.now().UnixNano())
	}
}

func (p *Pipeline) process(ctx context.Context, task Task) {
	if !p.box.isCurrent(task.Generation) {
		p.metrics.RecordDrop(ctx, observe.DropStaleDequeue)
		return
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(observe.GenerationKey.Int64(int64(task.Generation))),
	)
	defer span.End()
	log := observe.Logger(ctx).With("generation", task.Generation)

	p.history.Add(p.speakerLabel + ": " + task.Text)
	history := p.history.Context()

	var tr, ans Outcome
	var g errgroup.Group
	g.Go(func() error {
		tr = p.call(ctx, "translate", p.translateTimeout, func(ctx context.Context) (string, error) {
			return p.translator.Translate(ctx, task.Text)
		})
		return nil
	})
	g.Go(func() error {
		ans = p.call(ctx, "answer", p.answerTimeout, func(ctx context.Context) (string, error) {
			return p.answerer.Answer(ctx, task.Text, history)
		})
		return nil
	})
	_ = g.Wait()

	if tr.Status != StatusOK {
		log.Warn("pipeline: translation substituted", "status", tr.Status, "err", tr.Err)
	}
	if ans.Status != StatusOK {
		log.Warn("pipeline: answer substituted", "status", ans.Status, "err", ans.Err)
		span.SetStatus(codes.Error, ans.Status.String())
	}

	ph := p.placeholders.Load()
	answer := strings.TrimSpace(ph.answer.Resolve(ans))
	if len([]rune(answer)) < minAnswerLen {
		p.metrics.RecordDrop(ctx, observe.DropShortAnswer)
		log.Debug("pipeline: answer too short, discarded")
		return
	}

	res := Result{
		ID:                uuid.New(),
		Generation:        task.Generation,
		Original:          task.Text,
		Translation:       ph.translation.Resolve(tr),
		Answer:            answer,
		TranslationStatus: tr.Status,
		AnswerStatus:      ans.Status,
		CreatedAt:         p.now(),
	}
	if !p.box.deliverIfCurrent(task.Generation, func() { p.sink.OnResult(ctx, res) }) {
		p.metrics.RecordDrop(ctx, observe.DropStaleEmit)
		log.Debug("pipeline: result superseded")
		return
	}
	p.metrics.RecordResult(ctx)
}

func (p *Pipeline) call(ctx context.Context, adapter string, d time.Duration, fn func(context.Context) (string, error)) Outcome {
	ctx, span := p.tracer.Start(ctx, "pipeline."+adapter)
	defer span.End()

	start := time.Now()
	o := callWithTimeout(ctx, d, fn)
	p.metrics.RecordAdapterCall(ctx, adapter, o.Status.String(), time.Since(start))

	observe.EndCall(span, o.Status.String(), o.Status == StatusFailed || o.Status == StatusTimedOut, o.Err)
	return o
}

// Package app wires the interview assistant together: providers, the
// adapter layer, the task pipeline, the utterance aggregator, the output
// sinks and the HTTP surface.
//
// New builds every subsystem from the config, Run drives them until the
// context is cancelled, and Shutdown releases what is left. Test doubles are
// injected through functional options and the [Providers] struct.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/interviewpilot/internal/assist"
	"github.com/MrWong99/interviewpilot/internal/config"
	"github.com/MrWong99/interviewpilot/internal/health"
	"github.com/MrWong99/interviewpilot/internal/observe"
	"github.com/MrWong99/interviewpilot/internal/pipeline"
	"github.com/MrWong99/interviewpilot/internal/server"
	"github.com/MrWong99/interviewpilot/internal/sink"
	"github.com/MrWong99/interviewpilot/internal/speech"
	"github.com/MrWong99/interviewpilot/internal/transcript"
	"github.com/MrWong99/interviewpilot/pkg/audio"
	"github.com/MrWong99/interviewpilot/pkg/provider/stt"
)

// consoleFlushTimeout bounds how long shutdown waits for queued console output.
const consoleFlushTimeout = 2 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics    *observe.Metrics
	level      *slog.LevelVar
	clock      speech.Clock
	audioIn    io.Reader
	output     io.Writer
	extraSinks []sink.Sink

	answerer   *assist.Answerer
	pipeline   *pipeline.Pipeline
	aggregator *speech.Aggregator
	hub        *sink.Hub
	sinks      sink.Multi
	health     *health.Handler
	server     *server.Server

	// ctrlMu serialises listening and reset commands.
	ctrlMu      sync.Mutex
	recognizing atomic.Bool

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithClock replaces the aggregator's clock.
func WithClock(c speech.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithAudioInput reads PCM from r instead of the configured audio.input.
func WithAudioInput(r io.Reader) Option {
	return func(a *App) { a.audioIn = r }
}

// WithOutput sets the console the results are printed to. Defaults to
// os.Stdout; nil disables console output.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.output = w }
}

// WithSinks adds output sinks next to the console and the websocket feed.
func WithSinks(s ...sink.Sink) Option {
	return func(a *App) { a.extraSinks = append(a.extraSinks, s...) }
}

// New builds the application. A nil provider disables that service: the
// pipeline substitutes the unavailable placeholder for translation or answer,
// and a missing recognizer leaves the controls and pipeline usable.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		output:    os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	translator, answerer, err := a.buildAdapters()
	if err != nil {
		return nil, err
	}

	a.buildSinks()

	trPH, ansPH := placeholdersFrom(cfg.Assistant.Placeholders)
	a.pipeline = pipeline.New(translator, answerer, a.sinks,
		pipeline.WithTimeouts(cfg.Pipeline.TranslateTimeout, cfg.Pipeline.AnswerTimeout),
		pipeline.WithHistorySize(cfg.Pipeline.HistorySize),
		pipeline.WithSpeakerLabel(cfg.Pipeline.SpeakerLabel),
		pipeline.WithPlaceholders(trPH, ansPH),
		pipeline.WithMetrics(a.metrics),
	)

	aggOpts := []speech.Option{
		speech.WithSilence(cfg.Aggregator.PartialSilence, cfg.Aggregator.FinalSilence),
		speech.WithMinFinalLength(cfg.Aggregator.MinFinalLength),
		speech.WithPreview(a.sinks.OnPreview),
		speech.WithMetrics(a.metrics),
	}
	if a.clock != nil {
		aggOpts = append(aggOpts, speech.WithClock(a.clock))
	}
	a.aggregator = speech.NewAggregator(a.pipeline, aggOpts...)

	a.health = health.New(a.checkers()...)
	if cfg.Server.ListenAddr != "" {
		a.server = server.New(cfg.Server.ListenAddr, a,
			server.WithHealth(a.health),
			server.WithFeed(a.hub),
			server.WithMetrics(a.metrics),
		)
	}
	return a, nil
}

// ── Init helpers ─────────────────────────────────────────────────────────────

func (a *App) buildAdapters() (pipeline.Translator, pipeline.Answerer, error) {
	var translator pipeline.Translator = pipeline.DisabledTranslator{}
	if p := a.providers.Translate; p != nil {
		t, err := assist.NewTranslator(p,
			assist.WithTargetLanguage(a.cfg.Assistant.TargetLanguage),
			assist.WithSourceLanguage(a.cfg.Providers.Translate.Option("source_language")),
			assist.WithTranslateProviderName(a.providers.TranslateName),
			assist.WithTranslatorMetrics(a.metrics),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("app: translator: %w", err)
		}
		translator = t
	} else {
		slog.Warn("translation disabled")
	}

	var answerer pipeline.Answerer = pipeline.DisabledAnswerer{}
	if p := a.providers.LLM; p != nil {
		ans, err := assist.NewAnswerer(p,
			assist.WithSystemPrompt(a.cfg.Assistant.SystemPrompt),
			assist.WithTemperature(a.cfg.Assistant.Temperature),
			assist.WithMaxTokens(a.cfg.Assistant.MaxTokens),
			assist.WithHistoryTurns(a.cfg.Pipeline.HistorySize),
			assist.WithProviderName(a.providers.LLMName),
			assist.WithAnswererMetrics(a.metrics),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("app: answerer: %w", err)
		}
		a.answerer = ans
		answerer = ans
	} else {
		slog.Warn("answers disabled")
	}
	return translator, answerer, nil
}

func (a *App) buildSinks() {
	if a.output != nil {
		console := sink.NewConsole(a.output)
		a.sinks = append(a.sinks, console)
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), consoleFlushTimeout)
			defer cancel()
			return console.Close(ctx)
		})
	}
	if a.cfg.Server.ListenAddr != "" {
		a.hub = sink.NewHub(sink.WithHubMetrics(a.metrics))
		a.sinks = append(a.sinks, a.hub)
		a.closers = append(a.closers, func() error {
			a.hub.Close()
			return nil
		})
	}
	a.sinks = append(a.sinks, a.extraSinks...)
}

func (a *App) checkers() []health.Checker {
	checks := []health.Checker{
		health.Condition("pipeline", "worker not running", a.pipeline.Running),
		health.Condition("recognizer", "no active speech recognition session", a.recognizing.Load).AsOptional(),
	}
	if h, ok := a.providers.LLM.(healthReporter); ok {
		checks = append(checks, health.Condition("answer_llm", "all providers have open circuits", h.Healthy))
	}
	if h, ok := a.providers.Translate.(healthReporter); ok {
		checks = append(checks, health.Condition("translate", "all providers have open circuits", h.Healthy).AsOptional())
	}
	return checks
}

// placeholdersFrom overlays configured placeholder texts on the defaults.
// Timeout and Failed apply to both adapters.
func placeholdersFrom(pc config.PlaceholderConfig) (tr, ans pipeline.Placeholders) {
	tr, ans = pipeline.DefaultTranslationPlaceholders(), pipeline.DefaultAnswerPlaceholders()
	if pc.Timeout != "" {
		tr.TimedOut, ans.TimedOut = pc.Timeout, pc.Timeout
	}
	if pc.Failed != "" {
		tr.Failed, ans.Failed = pc.Failed, pc.Failed
	}
	if pc.TranslationUnavailable != "" {
		tr.Unavailable = pc.TranslationUnavailable
	}
	if pc.AnswerUnavailable != "" {
		ans.Unavailable = pc.AnswerUnavailable
	}
	return tr, ans
}

// ── Accessors ────────────────────────────────────────────────────────────────

// Pipeline returns the task pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Aggregator returns the utterance aggregator.
func (a *App) Aggregator() *speech.Aggregator { return a.aggregator }

// Handler returns the HTTP handler, or nil when server.listen_addr is empty.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler()
}

// ── Controls ─────────────────────────────────────────────────────────────────

var _ server.Controller = (*App)(nil)

// Listening reports whether audio is forwarded and fragments are accepted.
func (a *App) Listening() bool { return a.aggregator.Listening() }

// SetListening pauses or resumes listening. Pausing flushes any buffered
// speech first.
func (a *App) SetListening(ctx context.Context, on bool) error {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()
	return a.aggregator.SetListening(ctx, on)
}

// ToggleListening flips the listening state and returns the new one.
func (a *App) ToggleListening(ctx context.Context) (bool, error) {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()
	on := !a.aggregator.Listening()
	if err := a.aggregator.SetListening(ctx, on); err != nil {
		return !on, err
	}
	return on, nil
}

// Reset flushes and clears the speech buffer, supersedes every pending or
// in-flight task, and clears all sinks. Nothing submitted before Reset is
// emitted afterwards.
func (a *App) Reset(ctx context.Context) error {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()
	if err := a.aggregator.Reset(ctx); err != nil {
		return fmt.Errorf("app: reset: %w", err)
	}
	a.pipeline.Reset()
	a.sinks.Clear()
	slog.Info("session reset", "generation", a.pipeline.Generation())
	return nil
}

// ApplyConfig applies the hot-reloadable part of a config change: log level,
// persona and placeholders. Other changes are logged and need a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SystemPromptChanged && a.answerer != nil {
		a.answerer.SetSystemPrompt(d.NewSystemPrompt)
		slog.Info("system prompt updated", "chars", len(d.NewSystemPrompt))
	}
	if d.PlaceholdersChanged {
		a.pipeline.SetPlaceholders(placeholdersFrom(d.NewPlaceholders))
		slog.Info("placeholders updated")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ── Run ──────────────────────────────────────────────────────────────────────

// Run starts the pipeline worker, the aggregator, speech recognition and the
// HTTP server, and blocks until ctx is cancelled or a subsystem fails.
// Recognition failures are logged and do not stop the other subsystems.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.pipeline.Run(gctx) })
	g.Go(func() error { return a.aggregator.Run(gctx) })
	g.Go(func() error {
		a.runRecognizer(gctx)
		return nil
	})
	if a.server != nil {
		g.Go(func() error { return a.server.Run(gctx) })
	}

	a.metrics.SetListening(ctx, false, a.aggregator.Listening())
	defer a.metrics.SetListening(context.Background(), a.aggregator.Listening(), false)

	slog.Info("app running",
		"listening", a.aggregator.Listening(),
		"translate", a.providers.TranslateName,
		"llm", a.providers.LLMName,
		"stt", a.providers.STTName,
	)

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Recognizing reports whether a speech recognition session is active.
func (a *App) Recognizing() bool { return a.recognizing.Load() }

// runRecognizer streams captured audio to the recognizer and recognizer
// output to the aggregator until the input ends, the session ends or ctx is
// cancelled.
func (a *App) runRecognizer(ctx context.Context) {
	if a.providers.STT == nil {
		slog.Warn("speech recognition disabled: no stt provider")
		return
	}
	in, closeIn, err := a.openAudio()
	if err != nil {
		slog.Error("speech recognition disabled: open audio input", "err", err)
		return
	}
	defer closeIn()

	sttCfg := a.cfg.Providers.STT
	sess, err := a.providers.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: audio.SpeechFormat.SampleRate,
		Channels:   audio.SpeechFormat.Channels,
		Language:   sttCfg.Option("language"),
		Keywords:   sttCfg.OptionStrings("keywords"),
	})
	if err != nil {
		slog.Error("speech recognition unavailable; controls stay usable", "err", err)
		return
	}
	defer sess.Close()
	a.recognizing.Store(true)
	defer a.recognizing.Store(false)

	src := audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: a.cfg.Audio.Channels}
	frameDur := time.Duration(a.cfg.Audio.FrameMS) * time.Millisecond
	frames := make(chan audio.Frame, 16)

	// sctx ends when either the input or the session ends.
	sctx, stop := context.WithCancel(ctx)
	defer stop()

	// Capture is not joined: a read on stdin cannot be interrupted, and the
	// closed frames channel or sctx ends the pump either way.
	go func() {
		if err := audio.Capture(sctx, in, src, audio.SpeechFormat, frameDur, frames); err != nil && sctx.Err() == nil {
			slog.Error("audio capture failed", "err", err)
		}
	}()

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		err := speech.Pump(gctx, frames, sess, a.aggregator.Listening)
		// Closing lets the recognizer deliver its last finals.
		_ = sess.Close()
		return err
	})
	var listenOpts []speech.ListenOption
	if vocab := transcript.NewVocabulary(sttCfg.OptionStrings("keywords")); vocab.Len() > 0 {
		listenOpts = append(listenOpts, speech.WithCorrection(vocab.Correct))
	}
	g.Go(func() error {
		defer stop()
		return speech.Listen(gctx, sess, a.aggregator, listenOpts...)
	})

	slog.Info("speech recognition started", "provider", a.providers.STTName, "input", src.String())
	err = g.Wait()
	switch {
	case ctx.Err() != nil:
		return
	case err != nil && !errors.Is(err, context.Canceled):
		slog.Error("speech recognition stopped", "err", err)
	default:
		slog.Info("speech recognition finished")
	}
}

// openAudio returns the PCM source and a function releasing it.
func (a *App) openAudio() (io.Reader, func(), error) {
	if a.audioIn != nil {
		return a.audioIn, func() {}, nil
	}
	switch path := a.cfg.Audio.Input; path {
	case "", "-", "stdin":
		return os.Stdin, func() {}, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
}

// ── Shutdown ─────────────────────────────────────────────────────────────────

// Shutdown releases subsystems that outlive Run. If ctx expires first the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		var errs []error
		for i, closer := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = err
				return
			}
			if err := closer(); err != nil {
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

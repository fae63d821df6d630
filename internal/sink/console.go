package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/MrWong99/interviewpilot/internal/pipeline"
	"github.com/MrWong99/interviewpilot/internal/speech"
)

// DefaultConsoleBuffer is how many rendered blocks may wait for the writer.
const DefaultConsoleBuffer = 64

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithPreviewLines prints preview updates as "» text" lines. Off by default
// because partial transcripts are noisy on a scrolling terminal.
func WithPreviewLines(on bool) ConsoleOption {
	return func(c *Console) { c.previews = on }
}

// WithConsoleBuffer sets how many rendered blocks may queue before new ones
// are dropped.
func WithConsoleBuffer(n int) ConsoleOption {
	return func(c *Console) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// Console renders results as plain text blocks:
//
//	🗣 original utterance
//	   translation
//	   suggested answer
//
// Rendering happens on the caller's goroutine; writing happens on a
// dedicated goroutine so a stalled terminal never blocks the pipeline.
// Blocks that do not fit the queue are dropped. Call [Console.Close] to
// flush the queue and stop the writer.
type Console struct {
	w        io.Writer
	previews bool
	bufSize  int

	lines chan string
	done  chan struct{}

	mu          sync.Mutex
	lastPreview string
	closed      bool
	dropped     int
}

var _ Sink = (*Console)(nil)

// NewConsole creates a Console writing to w and starts its writer goroutine.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{w: w, bufSize: DefaultConsoleBuffer}
	for _, o := range opts {
		o(c)
	}
	c.lines = make(chan string, c.bufSize)
	c.done = make(chan struct{})
	go c.writeLoop()
	return c
}

// OnResult implements [pipeline.Sink].
func (c *Console) OnResult(_ context.Context, r pipeline.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPreview = ""
	c.enqueueLocked(fmt.Sprintf("🗣 %s\n   %s\n   %s\n\n", r.Original, r.Translation, r.Answer))
}

// OnPreview implements [Sink]. Repeated identical previews are printed once.
func (c *Console) OnPreview(kind speech.PreviewKind, text string) {
	if !c.previews || kind == speech.PreviewIdle {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.lastPreview {
		return
	}
	c.lastPreview = text
	c.enqueueLocked("» " + text + "\n")
}

// Clear implements [Sink].
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPreview = ""
	c.enqueueLocked("──── cleared ────\n\n")
}

// Dropped returns how many blocks were discarded because the writer fell
// behind.
func (c *Console) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops accepting output and waits until the queued blocks are
// written or ctx is done. Safe to call more than once.
func (c *Console) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.lines)
	}
	c.mu.Unlock()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sink: console flush: %w", ctx.Err())
	}
}

// enqueueLocked must be called with mu held.
func (c *Console) enqueueLocked(s string) {
	if c.closed {
		return
	}
	select {
	case c.lines <- s:
	default:
		if c.dropped == 0 {
			slog.Warn("sink: console writer is behind, dropping output")
		}
		c.dropped++
	}
}

// writeLoop drains lines until Close. Only the first write error is logged.
func (c *Console) writeLoop() {
	defer close(c.done)
	failed := false
	for s := range c.lines {
		if _, err := io.WriteString(c.w, s); err != nil && !failed {
			failed = true
			slog.Warn("sink: console write failed", "err", err)
		}
	}
}

package speech

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/interviewpilot/pkg/audio"
	"github.com/MrWong99/interviewpilot/pkg/provider/stt"
	sttmock "github.com/MrWong99/interviewpilot/pkg/provider/stt/mock"
)

func TestListen_ForwardsTranscripts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sess := sttmock.NewSession()

	done := make(chan error, 1)
	go func() { done <- Listen(context.Background(), sess, h.agg) }()

	sess.PartialsCh <- stt.Transcript{Text: "tell"}
	sess.FinalsCh <- stt.Transcript{Text: "tell me", IsFinal: true}
	_ = sess.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after session close")
	}

	if buf := h.sync(t); buf != "tell me " {
		t.Errorf("buffer = %q, want %q", buf, "tell me ")
	}
	h.advance(t, time.Second)
	assertSubmitted(t, h, "tell me")
}

func TestListen_CorrectsFinalsOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sess := sttmock.NewSession()

	upper := func(s string) string { return strings.ToUpper(s) }
	done := make(chan error, 1)
	go func() { done <- Listen(context.Background(), sess, h.agg, WithCorrection(upper)) }()

	sess.PartialsCh <- stt.Transcript{Text: "cuber"}
	sess.FinalsCh <- stt.Transcript{Text: "cuber netties", IsFinal: true}
	_ = sess.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after session close")
	}

	if buf := h.sync(t); buf != "CUBER NETTIES " {
		t.Errorf("buffer = %q, want %q", buf, "CUBER NETTIES ")
	}
	h.preview.mu.Lock()
	defer h.preview.mu.Unlock()
	if !slices.ContainsFunc(h.preview.texts, func(s string) bool { return strings.HasSuffix(s, "cuber...") }) {
		t.Errorf("previews = %q, want the partial uncorrected", h.preview.texts)
	}
}

func TestListen_ContextCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sess := sttmock.NewSession()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Listen(ctx, sess, h.agg); !errors.Is(err, context.Canceled) {
		t.Errorf("Listen = %v, want context.Canceled", err)
	}
}

func TestPump_OnlyWhileListening(t *testing.T) {
	t.Parallel()
	sess := sttmock.NewSession()
	frames := make(chan audio.Frame, 4)

	frames <- audio.Frame{Data: []byte{1, 2}}
	close(frames)

	if err := Pump(context.Background(), frames, sess, func() bool { return true }); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if got := sess.ChunkCount(); got != 1 {
		t.Fatalf("chunks = %d, want 1", got)
	}

	paused := make(chan audio.Frame, 2)
	paused <- audio.Frame{Data: []byte{3, 4}}
	paused <- audio.Frame{Data: []byte{5, 6}}
	close(paused)
	if err := Pump(context.Background(), paused, sess, func() bool { return false }); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if got := sess.ChunkCount(); got != 1 {
		t.Errorf("chunks after paused pump = %d, want 1", got)
	}
}

func TestPump_SessionClosed(t *testing.T) {
	t.Parallel()
	sess := sttmock.NewSession()
	sess.SendAudioErr = stt.ErrSessionClosed
	frames := make(chan audio.Frame, 1)
	frames <- audio.Frame{Data: []byte{1}}

	if err := Pump(context.Background(), frames, sess, func() bool { return true }); err != nil {
		t.Errorf("Pump = %v, want nil on closed session", err)
	}
}

func TestPump_SendError(t *testing.T) {
	t.Parallel()
	sess := sttmock.NewSession()
	boom := errors.New("boom")
	sess.SendAudioErr = boom
	frames := make(chan audio.Frame, 1)
	frames <- audio.Frame{Data: []byte{1}}

	if err := Pump(context.Background(), frames, sess, func() bool { return true }); !errors.Is(err, boom) {
		t.Errorf("Pump = %v, want boom", err)
	}
}

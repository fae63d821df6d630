package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGroup() *FallbackGroup[string] {
	fg := NewFallbackGroup("deepl", "deepl", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("llm", "llm")
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := newGroup()

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(called) != 1 || called[0] != "deepl" {
		t.Fatalf("called = %v, want [deepl]", called)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	fg := newGroup()

	got, err := ExecuteWithResult(context.Background(), fg, func(v string) (string, error) {
		if v == "deepl" {
			return "", errTest
		}
		return "from " + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from llm" {
		t.Fatalf("result = %q, want from llm", got)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := newGroup()

	err := fg.Execute(context.Background(), func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want wrapped errTest", err)
	}
}

func TestFallbackGroup_SkipsOpenProvider(t *testing.T) {
	fg := newGroup()
	failPrimary := func(v string) error {
		if v == "deepl" {
			return errTest
		}
		return nil
	}
	for range 2 {
		_ = fg.Execute(context.Background(), failPrimary)
	}

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(called) != 1 || called[0] != "llm" {
		t.Fatalf("called = %v, want [llm] (primary circuit open)", called)
	}

	states := fg.States()
	if len(states) != 2 || states[0].Name != "deepl" || states[0].State != StateOpen || states[1].State != StateClosed {
		t.Errorf("States = %+v", states)
	}
	if !fg.Healthy() {
		t.Error("group with one closed entry should be healthy")
	}
}

func TestFallbackGroup_StopsWhenContextDone(t *testing.T) {
	fg := newGroup()
	ctx, cancel := context.WithCancel(context.Background())

	var called []string
	err := fg.Execute(ctx, func(v string) error {
		called = append(called, v)
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(called) != 1 {
		t.Fatalf("called = %v, want only the primary", called)
	}
}

func TestFallbackGroup_NotHealthyWhenAllOpen(t *testing.T) {
	fg := newGroup()
	for range 2 {
		_ = fg.Execute(context.Background(), func(string) error { return errTest })
	}
	if fg.Healthy() {
		t.Error("group with all circuits open reported healthy")
	}
}

func TestFallbackGroup_Primary(t *testing.T) {
	if got := newGroup().Primary(); got != "deepl" {
		t.Errorf("Primary = %q, want deepl", got)
	}
}

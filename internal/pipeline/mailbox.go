package pipeline

import (
	"context"
	"sync"
)

// Task is an utterance stamped with the generation current at submission.
type Task struct {
	Text       string
	Generation uint64
}

// mailbox is a single-slot queue paired with the generation counter. Both are
// guarded by one mutex. A newer submission overwrites an unconsumed one, so
// at most one task is ever pending.
type mailbox struct {
	mu           sync.Mutex
	pending      *Task
	generation   uint64
	historyReset bool

	// signal holds at most one wake-up token.
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// put replaces the pending task and returns its generation.
func (m *mailbox) put(text string) uint64 {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.pending = &Task{Text: text, Generation: gen}
	m.mu.Unlock()

	m.notify()
	return gen
}

// reset drops the pending task, invalidates in-flight work and asks the
// worker to clear its history before the next task.
func (m *mailbox) reset() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.generation++
	m.historyReset = true
	return m.generation
}

// take removes the pending task, if any. clearHistory reports whether a reset
// happened since the previous take.
func (m *mailbox) take() (task Task, ok, clearHistory bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clearHistory = m.historyReset
	m.historyReset = false
	if m.pending == nil {
		return Task{}, false, clearHistory
	}
	task = *m.pending
	m.pending = nil
	return task, true, clearHistory
}

// wait blocks until a task is available or ctx is done.
func (m *mailbox) wait(ctx context.Context) (task Task, clearHistory bool, err error) {
	for {
		t, ok, reset := m.take()
		clearHistory = clearHistory || reset
		if ok {
			return t, clearHistory, nil
		}
		select {
		case <-m.signal:
		case <-ctx.Done():
			return Task{}, clearHistory, ctx.Err()
		}
	}
}

func (m *mailbox) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *mailbox) isCurrent(gen uint64) bool {
	return m.current() == gen
}

// deliverIfCurrent runs fn under the mailbox lock if gen is still current.
// Holding the lock orders the delivery strictly before or after any
// concurrent put or reset.
func (m *mailbox) deliverIfCurrent(gen uint64, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return false
	}
	fn()
	return true
}

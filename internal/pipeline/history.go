package pipeline

import "strings"

// DefaultHistorySize is the number of utterances kept as answer context.
const DefaultHistorySize = 5

// History is a bounded rolling record of recent utterances. The oldest entry
// is evicted once the capacity is exceeded.
//
// History is not safe for concurrent use; the pipeline worker owns it.
type History struct {
	entries []string
	size    int
}

// NewHistory returns a History holding at most size entries. Non-positive
// sizes fall back to DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{entries: make([]string, 0, size), size: size}
}

// Add appends entry and evicts the oldest entries beyond capacity.
func (h *History) Add(entry string) {
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.size {
		// Copy survivors so evicted strings are not pinned by the backing array.
		fresh := make([]string, h.size, h.size+1)
		copy(fresh, h.entries[len(h.entries)-h.size:])
		h.entries = fresh
	}
}

// Context joins the entries, oldest first, with newlines.
func (h *History) Context() string {
	return strings.Join(h.entries, "\n")
}

// Entries returns a copy of the entries in chronological order.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int { return len(h.entries) }

// Clear removes all entries.
func (h *History) Clear() {
	h.entries = h.entries[:0]
}

package stream

import (
	"strings"
	"sync"
)

// contextWindowEntries caps the sliding window at the most recent entries.
const contextWindowEntries = 10

type windowEntry struct {
	chunkIndex int
	content    string
}

// ContextWindow is a capped sliding buffer of recently translated code,
// supplied to the translator so adjacent chunks stay coherent. Safe for
// concurrent use.
type ContextWindow struct {
	mu      sync.Mutex
	entries []windowEntry
}

// NewContextWindow returns an empty window.
func NewContextWindow() *ContextWindow {
	return &ContextWindow{}
}

// Add appends translated content for a chunk, evicting the oldest entries
// beyond the cap.
func (w *ContextWindow) Add(chunkIndex int, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, windowEntry{chunkIndex: chunkIndex, content: content})
	if len(w.entries) > contextWindowEntries {
		w.entries = w.entries[len(w.entries)-contextWindowEntries:]
	}
}

// Tail returns the trailing text of the window bounded to limit characters.
func (w *ContextWindow) Tail(limit int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, len(w.entries))
	for i, e := range w.entries {
		parts[i] = e.content
	}
	joined := strings.Join(parts, "\n")
	if limit > 0 && len(joined) > limit {
		joined = joined[len(joined)-limit:]
	}
	return joined
}

// Bytes reports the total content size currently held.
func (w *ContextWindow) Bytes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, e := range w.entries {
		total += len(e.content)
	}
	return total
}

// Len reports the number of entries currently held.
func (w *ContextWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

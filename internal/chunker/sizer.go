package chunker

import (
	"sync"
	"time"
)

// Sizer proposes the length of the next chunk given the configured default.
// Proposals are clamped by the Source; a Sizer does not need to respect the
// hard cap itself.
type Sizer interface {
	NextSize(defaultSize int) int
	// Record feeds back the outcome of one processed chunk.
	Record(size int, duration time.Duration, success bool)
}

const (
	// defaults chosen so a chunk translating in about a second keeps its size.
	adaptiveGrowFactor   = 1.25
	adaptiveShrinkFactor = 0.75
	adaptiveFastCutoff   = 2 * time.Second
	adaptiveSlowCutoff   = 10 * time.Second
)

// AdaptiveSizer grows chunk sizes while chunks complete quickly and
// successfully, and shrinks them on failures or slow completions. It is safe
// for concurrent use: in bounded-parallel mode feedback arrives from worker
// goroutines.
type AdaptiveSizer struct {
	mu      sync.Mutex
	current int
}

// NewAdaptiveSizer returns a sizer starting from the given size.
// A non-positive start defers to the default passed to NextSize.
func NewAdaptiveSizer(start int) *AdaptiveSizer {
	return &AdaptiveSizer{current: start}
}

// NextSize returns the current proposal, initializing from defaultSize on
// first use.
func (a *AdaptiveSizer) NextSize(defaultSize int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current <= 0 {
		a.current = defaultSize
	}
	return a.current
}

// Record adjusts the proposal from one chunk's outcome: failures and slow
// chunks shrink the next proposal, fast successes grow it. Outcomes between
// the cutoffs leave the size unchanged.
func (a *AdaptiveSizer) Record(size int, duration time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current <= 0 {
		a.current = size
	}
	switch {
	case !success || duration >= adaptiveSlowCutoff:
		a.current = int(float64(a.current) * adaptiveShrinkFactor)
	case duration <= adaptiveFastCutoff:
		a.current = int(float64(a.current) * adaptiveGrowFactor)
	}
	if a.current < 1 {
		a.current = 1
	}
}

package translator

import (
	"sync"
	"time"
)

// Stats tallies translation outcomes for one translator instance. Counters
// are owned by the instance, never package globals, and can be reset.
type Stats struct {
	mu         sync.Mutex
	successful int
	failed     int
	totalTime  time.Duration
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Successful  int
	Failed      int
	Total       int
	SuccessRate float64
	AvgTime     time.Duration
}

func (s *Stats) record(success bool, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.successful++
		s.totalTime += d
	} else {
		s.failed++
	}
}

// Snapshot returns current counter values.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Successful: s.successful,
		Failed:     s.failed,
		Total:      s.successful + s.failed,
	}
	if snap.Total > 0 {
		snap.SuccessRate = float64(snap.Successful) / float64(snap.Total) * 100
	}
	if s.successful > 0 {
		snap.AvgTime = s.totalTime / time.Duration(s.successful)
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successful = 0
	s.failed = 0
	s.totalTime = 0
}

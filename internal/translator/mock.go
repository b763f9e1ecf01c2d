package translator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockTranslator is a deterministic, offline Translator for tests and dry
// runs. By default it renders each prose line as a Python comment followed by
// a pass statement; Func overrides the whole behavior when set.
type MockTranslator struct {
	// Func, when non-nil, handles every call.
	Func func(ctx context.Context, req Request) (*Result, error)
	// Delay is slept (context-aware) before answering, to exercise
	// timeout and backpressure paths in tests.
	Delay time.Duration
	// FailTexts lists inputs that produce Success=false.
	FailTexts []string

	stats Stats
}

func (m *MockTranslator) Name() string { return "mock" }

func (m *MockTranslator) IsAvailable(ctx context.Context) error { return nil }

// Stats returns the instance's translation counters.
func (m *MockTranslator) Stats() Snapshot { return m.stats.Snapshot() }

func (m *MockTranslator) Translate(ctx context.Context, req Request) (*Result, error) {
	if m.Func != nil {
		return m.Func(ctx, req)
	}

	start := time.Now()
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			m.stats.record(false, time.Since(start))
			return &Result{Errors: []string{ctx.Err().Error()}}, ctx.Err()
		case <-t.C:
		}
	}

	for _, f := range m.FailTexts {
		if strings.Contains(req.Text, f) {
			m.stats.record(false, time.Since(start))
			return &Result{Errors: []string{"mock failure"}}, nil
		}
	}

	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(req.Text), "\n") {
		fmt.Fprintf(&sb, "# %s\n", strings.TrimSpace(line))
	}
	sb.WriteString("pass")

	m.stats.record(true, time.Since(start))
	return &Result{
		Success:  true,
		Code:     sb.String(),
		Metadata: map[string]string{"model": "mock"},
		Latency:  time.Since(start),
	}, nil
}

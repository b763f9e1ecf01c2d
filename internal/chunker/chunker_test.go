package chunker_test

import (
	"strings"
	"testing"
	"time"

	"github.com/valpere/pseudotran/internal/chunker"
)

// --- Source tests ---

func TestSource_ShortText(t *testing.T) {
	text := "x = 1\n"
	chunks := chunker.Split(text, chunker.Options{ChunkSize: 100})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("expected %q, got %q", text, chunks[0].Content)
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
}

func TestSource_Reconstruction(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("def f():\n    return 1\n\nprint(f())\n")
	}
	text := sb.String()

	chunks := chunker.Split(text, chunker.Options{ChunkSize: 64})
	var joined strings.Builder
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.Size != len(c.Content) {
			t.Errorf("chunk %d size %d != len(content) %d", i, c.Size, len(c.Content))
		}
		joined.WriteString(c.Content)
	}
	if joined.String() != text {
		t.Error("concatenated chunks do not reconstruct the input")
	}
}

func TestSource_ParagraphBoundary(t *testing.T) {
	para1 := "first = 1\nsecond = 2\n"
	para2 := "third = 3\nfourth = 4\n"
	text := para1 + "\n" + para2

	chunks := chunker.Split(text, chunker.Options{ChunkSize: len(text) - 5})
	if len(chunks) < 2 {
		t.Fatalf("expected >=2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, "\n\n") {
		t.Errorf("first chunk should end at the paragraph boundary: %q", chunks[0].Content)
	}
}

func TestSource_AvoidsSplittingIndentedSuite(t *testing.T) {
	text := "def f():\n    a = 1\n    b = 2\nresult = f()\nmore = 1\n"
	chunks := chunker.Split(text, chunker.Options{ChunkSize: len(text) - 8})
	if len(chunks) < 2 {
		t.Fatalf("expected >=2 chunks, got %d", len(chunks))
	}
	// The split must not land inside the indented body of f.
	if strings.HasPrefix(chunks[1].Content, " ") || strings.HasPrefix(chunks[1].Content, "\t") {
		t.Errorf("second chunk starts mid-suite: %q", chunks[1].Content)
	}
}

func TestSource_HardCut(t *testing.T) {
	text := strings.Repeat("a", 50)
	chunks := chunker.Split(text, chunker.Options{ChunkSize: 20})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != strings.Repeat("a", 20) {
		t.Errorf("hard cut produced %q", chunks[0].Content)
	}
}

type fixedSizer struct {
	sizes []int
	calls int
}

func (f *fixedSizer) NextSize(defaultSize int) int {
	if f.calls >= len(f.sizes) {
		return defaultSize
	}
	s := f.sizes[f.calls]
	f.calls++
	return s
}

func (f *fixedSizer) Record(int, time.Duration, bool) {}

func TestSource_ResizeDecision(t *testing.T) {
	text := strings.Repeat("x", 100)
	var decisions []chunker.Decision
	chunker.Split(text, chunker.Options{
		ChunkSize: 10,
		Sizer:     &fixedSizer{sizes: []int{10, 20, 5}},
		OnResize:  func(d chunker.Decision) { decisions = append(decisions, d) },
	})

	if len(decisions) < 2 {
		t.Fatalf("expected >=2 decisions, got %d", len(decisions))
	}
	if decisions[0].Previous != 10 || decisions[0].Next != 20 || decisions[0].Direction != "increase" {
		t.Errorf("unexpected first decision: %+v", decisions[0])
	}
	if decisions[1].Previous != 20 || decisions[1].Next != 5 || decisions[1].Direction != "decrease" {
		t.Errorf("unexpected second decision: %+v", decisions[1])
	}
}

func TestSource_ClampsToHardCap(t *testing.T) {
	text := strings.Repeat("y", 200)
	chunks := chunker.Split(text, chunker.Options{
		ChunkSize:        10,
		MaxContextLength: 20,
		Sizer:            &fixedSizer{sizes: []int{1000, 1000, 1000, 1000, 1000}},
	})
	for _, c := range chunks {
		if c.Size > 40 {
			t.Errorf("chunk %d exceeds hard cap: %d", c.Index, c.Size)
		}
	}
}

// --- AdaptiveSizer tests ---

func TestAdaptiveSizer_GrowsOnFastSuccess(t *testing.T) {
	s := chunker.NewAdaptiveSizer(0)
	start := s.NextSize(1000)
	s.Record(start, 100*time.Millisecond, true)
	if next := s.NextSize(1000); next <= start {
		t.Errorf("expected growth after fast success, got %d -> %d", start, next)
	}
}

func TestAdaptiveSizer_ShrinksOnFailure(t *testing.T) {
	s := chunker.NewAdaptiveSizer(1000)
	s.Record(1000, time.Second, false)
	if next := s.NextSize(1000); next >= 1000 {
		t.Errorf("expected shrink after failure, got %d", next)
	}
}

func TestAdaptiveSizer_NeverBelowOne(t *testing.T) {
	s := chunker.NewAdaptiveSizer(1)
	for i := 0; i < 20; i++ {
		s.Record(1, time.Minute, false)
	}
	if next := s.NextSize(1); next < 1 {
		t.Errorf("size fell below 1: %d", next)
	}
}

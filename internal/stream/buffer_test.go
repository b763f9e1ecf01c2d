package stream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/valpere/pseudotran/internal/block"
)

func TestBuffer_FirstWriteWins(t *testing.T) {
	b := NewBuffer()
	b.Add(0, &block.ChunkResult{Index: 0, Err: "first"})
	b.Add(0, &block.ChunkResult{Index: 0, Err: "second"})

	if got := b.Get(0); got == nil || got.Err != "first" {
		t.Errorf("expected first write to win, got %+v", got)
	}
	if b.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", b.Len())
	}
	if b.Get(7) != nil {
		t.Error("missing index must return nil")
	}
}

func TestContextWindow_CapsEntries(t *testing.T) {
	w := NewContextWindow()
	for i := 0; i < contextWindowEntries+5; i++ {
		w.Add(i, fmt.Sprintf("x%d = 1", i))
	}
	if got := w.Len(); got != contextWindowEntries {
		t.Errorf("expected %d entries, got %d", contextWindowEntries, got)
	}

	tail := w.Tail(0)
	if strings.Contains(tail, "x4 =") {
		t.Error("evicted entry still present in tail")
	}
	if !strings.HasSuffix(tail, fmt.Sprintf("x%d = 1", contextWindowEntries+4)) {
		t.Errorf("tail not most-recent-last: %q", tail)
	}
	if got := w.Tail(6); len(got) != 6 {
		t.Errorf("tail limit not applied: %q", got)
	}
	if w.Bytes() == 0 {
		t.Error("Bytes should account for retained content")
	}
}

package postprocess_test

import (
	"strings"
	"testing"

	"github.com/valpere/pseudotran/internal/postprocess"
)

func TestClean_PlainCodeUntouched(t *testing.T) {
	code := "def add(a, b):\n    return a + b"
	if got := postprocess.Clean(code); got != code {
		t.Errorf("plain code changed:\n%q", got)
	}
}

func TestClean_RemovesThinkingBlock(t *testing.T) {
	text := "<thinking>let me work this out</thinking>x = 1"
	if got := postprocess.Clean(text); got != "x = 1" {
		t.Errorf("expected %q, got %q", "x = 1", got)
	}
}

func TestClean_RemovesTruncatedThinking(t *testing.T) {
	text := "y = 2\n<think>unfinished thought without closing"
	got := postprocess.Clean(text)
	if got != "y = 2" {
		t.Errorf("expected %q, got %q", "y = 2", got)
	}
}

func TestClean_RemovesInstructionEcho(t *testing.T) {
	text := "Here is the Python code:\nprint('hi')"
	if got := postprocess.Clean(text); got != "print('hi')" {
		t.Errorf("expected echo stripped, got %q", got)
	}
}

func TestClean_RemovesCodeFence(t *testing.T) {
	text := "```python\ndef f():\n    pass\n```"
	want := "def f():\n    pass"
	if got := postprocess.Clean(text); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestClean_UnterminatedFenceLosesOpeningLineOnly(t *testing.T) {
	text := "```python\nx = 1"
	if got := postprocess.Clean(text); got != "x = 1" {
		t.Errorf("expected %q, got %q", "x = 1", got)
	}
}

func TestClean_ExpandsLeadingTabs(t *testing.T) {
	text := "def f():\n\treturn 1"
	got := postprocess.Clean(text)
	if strings.Contains(got, "\t") {
		t.Errorf("tabs survived: %q", got)
	}
	if !strings.Contains(got, "    return 1") {
		t.Errorf("expected four-space indent, got %q", got)
	}
}

func TestClean_PreservesInteriorIndentation(t *testing.T) {
	text := "```\nif x:\n    if y:\n        z()\n```"
	want := "if x:\n    if y:\n        z()"
	if got := postprocess.Clean(text); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// Package chunker splits pseudocode input into ordered, sized chunks while
// preserving statement and paragraph integrity. Chunk sizes may vary
// chunk-to-chunk when an adaptive sizer is attached; every size change is
// reported as a resize decision before the chunk is produced.
package chunker

import (
	"strings"
	"unicode"

	"github.com/valpere/pseudotran/internal/block"
)

const (
	// DefaultChunkSize is the target chunk length in characters when no
	// explicit size is configured.
	DefaultChunkSize = 4096

	// DefaultMaxContextLength bounds the sizer: proposals are clamped to
	// [1, 2*DefaultMaxContextLength] unless overridden.
	DefaultMaxContextLength = 8192
)

// Decision records one resize proposal accepted by the source.
type Decision struct {
	Previous  int
	Next      int
	Direction string // "increase" or "decrease"
}

// Options configures a Source.
type Options struct {
	// ChunkSize is the default target size passed to the sizer.
	// Zero means DefaultChunkSize.
	ChunkSize int
	// MaxContextLength caps sizer proposals at twice its value.
	// Zero means DefaultMaxContextLength.
	MaxContextLength int
	// Sizer proposes the next chunk length. Nil means fixed-size chunks.
	Sizer Sizer
	// OnResize is invoked before producing a chunk whose size differs from
	// the previous chunk's. May be nil.
	OnResize func(Decision)
}

// Source produces a lazy, finite, non-restartable sequence of chunks from
// input text. Chunk indices are zero-based and contiguous, and the
// concatenation of all chunk contents equals the input exactly.
type Source struct {
	text     string
	pos      int
	index    int
	prevSize int
	opts     Options
}

// NewSource returns a Source over text.
func NewSource(text string, opts Options) *Source {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MaxContextLength <= 0 {
		opts.MaxContextLength = DefaultMaxContextLength
	}
	return &Source{text: text, prevSize: -1, opts: opts}
}

// Remaining reports how many bytes of input have not yet been chunked.
func (s *Source) Remaining() int {
	return len(s.text) - s.pos
}

// Next returns the next chunk, or false when the input is exhausted.
func (s *Source) Next() (block.Chunk, bool) {
	if s.pos >= len(s.text) {
		return block.Chunk{}, false
	}

	desired := s.opts.ChunkSize
	if s.opts.Sizer != nil {
		desired = s.opts.Sizer.NextSize(s.opts.ChunkSize)
	}
	if hardCap := 2 * s.opts.MaxContextLength; desired > hardCap {
		desired = hardCap
	}
	if desired < 1 {
		desired = 1
	}

	if s.prevSize >= 0 && desired != s.prevSize && s.opts.OnResize != nil {
		dir := "increase"
		if desired < s.prevSize {
			dir = "decrease"
		}
		s.opts.OnResize(Decision{Previous: s.prevSize, Next: desired, Direction: dir})
	}

	rest := s.text[s.pos:]
	split := findSplit(rest, desired)
	content := rest[:split]

	c := block.Chunk{Index: s.index, Content: content, Size: len(content)}
	s.pos += split
	s.index++
	s.prevSize = desired
	return c, true
}

// findSplit returns the byte index within text at which to split, aiming for
// at most maxChars runes. Boundaries are tried in order of preference:
//
//  1. Blank line (paragraph boundary)
//  2. Newline followed by a non-indented line (top-level statement start)
//  3. Any newline
//  4. Whitespace
//  5. Hard cut at maxChars
//
// A hard cut is an accepted fallback, not an error.
func findSplit(text string, maxChars int) int {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return len(text)
	}
	candidate := string(runes[:maxChars])

	// 1. Paragraph boundary.
	if idx := strings.LastIndex(candidate, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(candidate, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}

	// 2. Newline whose following line starts at column zero. Splitting here
	// avoids cutting inside an indented suite.
	for i := len(candidate) - 2; i > 0; i-- {
		if candidate[i] != '\n' {
			continue
		}
		if candidate[i+1] != ' ' && candidate[i+1] != '\t' && candidate[i+1] != '\n' {
			return i + 1
		}
	}

	// 3. Any newline.
	if idx := strings.LastIndexByte(candidate, '\n'); idx > 0 {
		return idx + 1
	}

	// 4. Whitespace word boundary.
	cr := []rune(candidate)
	for i := len(cr) - 1; i > 0; i-- {
		if unicode.IsSpace(cr[i]) {
			return len(string(cr[:i+1]))
		}
	}

	// 5. Hard cut.
	return len(candidate)
}

// Split chunks text eagerly and returns the full slice. It is a convenience
// for callers that do not need lazy production.
func Split(text string, opts Options) []block.Chunk {
	src := NewSource(text, opts)
	var chunks []block.Chunk
	for {
		c, ok := src.Next()
		if !ok {
			return chunks
		}
		chunks = append(chunks, c)
	}
}

// Package parser classifies raw chunk text into typed blocks: natural
// language to be translated, Python code to be passed through, or mixed
// content. Classification is heuristic and line-based; the lingua-go
// detector confirms that prose-looking segments really are natural language.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/valpere/pseudotran/internal/block"
)

// Result is the outcome of parsing one chunk of content.
type Result struct {
	Blocks   []block.Block
	Warnings []string
	Success  bool
}

// Parser turns chunk content into typed blocks.
type Parser interface {
	Parse(content string) *Result
}

// LineParser is the default Parser. It segments input on blank lines and
// scores each segment by the fraction of code-shaped lines.
// The language detector is expensive to build; reuse the instance.
type LineParser struct {
	det lingua.LanguageDetector
}

// New returns a LineParser backed by a lingua-go detector.
func New() *LineParser {
	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Spanish, lingua.French, lingua.German).
		Build()
	return &LineParser{det: det}
}

var (
	codeHeadRe = regexp.MustCompile(`^\s*(def |class |import |from |if |elif |else:|for |while |try:|except|finally:|with |return\b|yield\b|raise\b|pass\b|break\b|continue\b|@\w|#)`)
	callRe     = regexp.MustCompile(`^\s*[\w.]+\s*\(`)
	assignRe   = regexp.MustCompile(`^\s*[\w.\[\]'"]+\s*(=|\+=|-=|\*=|/=)\s*\S`)
	proseEndRe = regexp.MustCompile(`[.?!]\s*$`)
)

// Parse splits content into segments on blank lines and classifies each one.
// It never fails: unclassifiable segments become mixed blocks with a warning.
func (p *LineParser) Parse(content string) *Result {
	res := &Result{Success: true}
	if strings.TrimSpace(content) == "" {
		return res
	}

	lines := strings.Split(content, "\n")
	start := 0
	for start < len(lines) {
		// Skip blank lines between segments.
		for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
			start++
		}
		if start >= len(lines) {
			break
		}
		end := start
		for end < len(lines) && strings.TrimSpace(lines[end]) != "" {
			end++
		}
		seg := strings.Join(lines[start:end], "\n")
		b := p.classify(seg, start+1, end)
		if b.Type == block.Mixed && looksUnclassifiable(seg) {
			res.Warnings = append(res.Warnings, "ambiguous segment at line "+strconv.Itoa(start+1))
		}
		res.Blocks = append(res.Blocks, b)
		start = end
	}
	return res
}

// classify scores one non-empty segment. Segments with a clear majority of
// code-shaped lines become Python blocks, clear prose becomes natural
// language, everything in between is mixed.
func (p *LineParser) classify(seg string, firstLine, lastLine int) block.Block {
	segLines := strings.Split(seg, "\n")
	code, prose := 0, 0
	for _, line := range segLines {
		switch {
		case isCodeLine(line):
			code++
		case isProseLine(line):
			prose++
		}
	}

	total := len(segLines)
	typ := block.Mixed
	switch {
	case code > 0 && prose == 0 && code*10 >= total*7:
		typ = block.Python
	case prose > 0 && code == 0:
		typ = block.NaturalLanguage
	case code == 0 && prose == 0:
		// No structural signal either way; ask the language detector.
		if p.isNaturalLanguage(seg) {
			typ = block.NaturalLanguage
		} else {
			typ = block.Python
		}
	}

	return block.Block{
		Type:        typ,
		Content:     seg,
		LineNumbers: [2]int{firstLine, lastLine},
		Metadata:    map[string]string{"lines": strconv.Itoa(total)},
	}
}

// isNaturalLanguage reports whether the detector identifies the segment as a
// supported human language. Detection is unreliable below a few words, in
// which case word shape decides.
func (p *LineParser) isNaturalLanguage(seg string) bool {
	words := strings.Fields(seg)
	if len(words) < 4 {
		return !strings.ContainsAny(seg, "=(){}[]")
	}
	if _, ok := p.det.DetectLanguageOf(seg); ok {
		return !strings.ContainsAny(seg, "=(){}")
	}
	return false
}

func isCodeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if codeHeadRe.MatchString(line) {
		return true
	}
	if assignRe.MatchString(line) && !proseEndRe.MatchString(trimmed) {
		return true
	}
	if callRe.MatchString(line) && strings.HasSuffix(trimmed, ")") {
		return true
	}
	return strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, " the ")
}

func isProseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || isCodeLine(line) {
		return false
	}
	if proseEndRe.MatchString(trimmed) && !strings.ContainsAny(trimmed, "={}") {
		return true
	}
	// Sentences without terminal punctuation still read as prose when they
	// are mostly plain words.
	words := strings.Fields(trimmed)
	if len(words) < 4 {
		return false
	}
	plain := 0
	for _, w := range words {
		if !strings.ContainsAny(w, "=(){}[]<>+*/") {
			plain++
		}
	}
	return plain*10 >= len(words)*9
}

func looksUnclassifiable(seg string) bool {
	return strings.ContainsAny(seg, "=(") && proseEndRe.MatchString(strings.TrimSpace(seg))
}

// Package postprocess removes common LLM artifacts from generated code.
//
// It is applied to the raw text returned by any LLM-backed translator before
// the result becomes a translated block.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from model output in four phases and returns
// the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Markdown code fence removal
//  4. Tab-to-space normalization
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	text = removeCodeFences(text)
	text = normalizeTabs(text)
	return strings.TrimRight(strings.TrimLeft(text, "\n"), " \t\n")
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
// Flags: i = case-insensitive, s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed not to. Each pattern is anchored to the start of the string
// and requires a colon to reduce false positives on legitimate content.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [translated|generated] [Python] code:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:translated |generated |python )*code\s*:`),
	// "[The] [Python] code:"
	regexp.MustCompile(`(?i)^(?:the )?(?:python )?code\s*:`),
	// "Certainly / Sure / Of course[,] here is [the] code:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:translated |generated |python )*code\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: code fences ---

// removeCodeFences strips a wrapping markdown fence when the whole text is a
// single fenced block. The opening line may carry a language tag
// ("```python"); an unterminated fence loses only the opening line.
func removeCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// --- Phase 4: indentation ---

// normalizeTabs expands leading tabs to four spaces so translated fragments
// mix cleanly with space-indented blocks during assembly.
func normalizeTabs(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		j := 0
		for j < len(line) && line[j] == '\t' {
			j++
		}
		if j > 0 {
			lines[i] = strings.Repeat("    ", j) + line[j:]
		}
	}
	return strings.Join(lines, "\n")
}

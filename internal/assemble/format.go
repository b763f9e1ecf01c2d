package assemble

import (
	"regexp"
	"strings"
)

// dedentKeywords open clauses that belong one level below the suite they
// follow. They matter when generated code arrives with the clause indented
// to its suite's body level.
var dedentKeywords = []string{"else:", "elif ", "except:", "except ", "finally:", "case "}

var blankRunRe = regexp.MustCompile(`\n{4,}`)

// postprocess applies final formatting: re-derived indentation, normalized
// line endings, bounded blank runs, stripped trailing whitespace, spacing
// between adjacent definitions, and exactly one trailing newline.
func (a *Assembler) postprocess(code string) string {
	code = a.fixIndentation(code)
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")
	code = blankRunRe.ReplaceAllString(code, "\n\n\n")

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	lines = spaceDefinitions(lines)

	out := strings.Join(lines, "\n")
	out = strings.TrimRight(out, "\n")
	if out != "" {
		out += "\n"
	}
	return out
}

// fixIndentation re-derives indentation with a stack: a line ending in a
// colon opens a level, a shallower line closes levels back to a known
// depth, and a dedent-keyword line sitting at its suite's body level is
// pulled back one level.
func (a *Assembler) fixIndentation(code string) string {
	lines := strings.Split(code, "\n")
	fixed := make([]string, 0, len(lines))
	stack := []int{0}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			fixed = append(fixed, "")
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if len(stack) > 1 && indent < stack[len(stack)-1] {
			for len(stack) > 1 && indent < stack[len(stack)-1] {
				stack = stack[:len(stack)-1]
			}
			indent = stack[len(stack)-1]
		}

		if len(stack) > 1 && indent == stack[len(stack)-1] && startsWithDedentKeyword(stripped) {
			stack = stack[:len(stack)-1]
			indent = stack[len(stack)-1]
		}

		fixed = append(fixed, strings.Repeat(" ", indent)+stripped)
		if strings.HasSuffix(stripped, ":") && !strings.HasPrefix(stripped, "#") {
			stack = append(stack, indent+a.cfg.IndentSize)
		}
	}
	return strings.Join(fixed, "\n")
}

func startsWithDedentKeyword(stripped string) bool {
	for _, kw := range dedentKeywords {
		if strings.HasPrefix(stripped, kw) {
			return true
		}
	}
	return false
}

// spaceDefinitions guarantees a blank line between directly adjacent
// top-level definitions.
func spaceDefinitions(lines []string) []string {
	cleaned := make([]string, 0, len(lines))
	prevWasDef := false

	for _, line := range lines {
		isDef := strings.HasPrefix(line, "def ") || strings.HasPrefix(line, "class ")

		if isDef && prevWasDef && len(cleaned) > 0 {
			for len(cleaned) >= 2 && cleaned[len(cleaned)-1] == "" && cleaned[len(cleaned)-2] == "" {
				cleaned = cleaned[:len(cleaned)-1]
			}
			if cleaned[len(cleaned)-1] != "" {
				cleaned = append(cleaned, "")
			}
			if len(cleaned) < 2 || cleaned[len(cleaned)-2] != "" {
				cleaned = append(cleaned, "")
			}
		}

		cleaned = append(cleaned, line)
		prevWasDef = isDef && strings.TrimSpace(line) != ""
	}
	return cleaned
}

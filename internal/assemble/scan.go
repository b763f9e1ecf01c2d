package assemble

import (
	"errors"
	"regexp"
	"strings"
)

// stmtKind classifies a top-level construct recovered from a block.
type stmtKind int

const (
	stmtOther stmtKind = iota
	stmtImport
	stmtFromImport
	stmtFunction
	stmtClass
	stmtAssign
	stmtDocstring
)

// statement is one top-level construct with its full source text, including
// any decorators and attached leading comments.
type statement struct {
	kind stmtKind
	name string // definition name, assignment target or import module
	text string
}

var (
	defRe       = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	classRe     = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*[:(]?`)
	importRe    = regexp.MustCompile(`^import\s+\S`)
	fromRe      = regexp.MustCompile(`^from\s+(\S+)\s+import\s`)
	assignRe    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?::[^=]+)?=(?:[^=]|$)`)
	docstringRe = regexp.MustCompile(`^("""|'''|"|')`)
)

// lineState carries lexical state across physical lines so statement
// boundaries are never placed inside a string, a bracket pair or after a
// trailing backslash.
type lineState struct {
	depth     int
	strQuote  byte
	strTriple bool
	contin    bool
}

func (st *lineState) open() bool {
	return st.depth > 0 || st.strQuote != 0 || st.contin
}

// scanLine advances the lexical state over one physical line. Comments and
// string contents never affect bracket depth.
func scanLine(line string, st *lineState) {
	st.contin = false
	i := 0
	for i < len(line) {
		c := line[i]
		if st.strQuote != 0 {
			if c == '\\' {
				i += 2
				continue
			}
			if c == st.strQuote {
				if !st.strTriple {
					st.strQuote = 0
					i++
					continue
				}
				if i+3 <= len(line) && line[i+1] == c && line[i+2] == c {
					st.strQuote = 0
					st.strTriple = false
					i += 3
					continue
				}
			}
			i++
			continue
		}
		switch c {
		case '#':
			return
		case '\'', '"':
			if i+3 <= len(line) && line[i+1] == c && line[i+2] == c {
				st.strQuote, st.strTriple = c, true
				i += 3
				continue
			}
			st.strQuote, st.strTriple = c, false
		case '(', '[', '{':
			st.depth++
		case ')', ']', '}':
			if st.depth > 0 {
				st.depth--
			}
		case '\\':
			if i == len(line)-1 {
				st.contin = true
			}
		}
		i++
	}
	// A single-quoted string that reaches end of line is malformed source;
	// close it so one bad line cannot poison the rest of the block.
	if st.strQuote != 0 && !st.strTriple {
		st.strQuote = 0
	}
}

// scanBlock splits block content into top-level statements. It is a
// line-level structural scan, not a full parse: statements begin at column
// zero outside strings and brackets, suites extend over their indented
// bodies, decorators and (optionally) leading comments attach to the
// statement that follows them.
func scanBlock(content string, keepComments bool) ([]statement, error) {
	var (
		stmts    []statement
		cur      []string
		comments []string
		decos    []string
		st       lineState
	)

	flush := func() {
		for len(cur) > 0 && strings.TrimSpace(cur[len(cur)-1]) == "" {
			cur = cur[:len(cur)-1]
		}
		if len(cur) == 0 {
			comments = comments[:0]
			return
		}
		head := strings.TrimSpace(cur[0])

		var parts []string
		if keepComments {
			parts = append(parts, comments...)
		}
		parts = append(parts, decos...)
		parts = append(parts, cur...)
		text := strings.Join(parts, "\n")

		kind, name := classifyHead(head)
		if kind == stmtOther && len(stmts) == 0 && len(decos) == 0 && docstringRe.MatchString(head) {
			kind = stmtDocstring
		}
		stmts = append(stmts, statement{kind: kind, name: name, text: text})

		cur = cur[:0]
		comments = comments[:0]
		decos = decos[:0]
	}

	for _, raw := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(raw)

		if len(cur) > 0 {
			if st.open() || trimmed == "" || raw[0] == ' ' || raw[0] == '\t' {
				cur = append(cur, raw)
				scanLine(raw, &st)
				continue
			}
			flush()
		}

		// A decorator whose argument list spans lines stays pending until
		// its brackets close.
		if len(decos) > 0 && st.open() {
			decos = append(decos, raw)
			scanLine(raw, &st)
			continue
		}

		if trimmed == "" {
			continue
		}
		if raw[0] == ' ' || raw[0] == '\t' {
			return nil, errors.New("unexpected indent")
		}
		if strings.HasPrefix(trimmed, "#") {
			comments = append(comments, raw)
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			decos = append(decos, raw)
			scanLine(raw, &st)
			continue
		}
		cur = append(cur, raw)
		scanLine(raw, &st)
	}

	if st.strQuote != 0 && st.strTriple {
		return nil, errors.New("unterminated triple-quoted string")
	}
	if st.depth > 0 {
		return nil, errors.New("unbalanced brackets")
	}
	if st.contin {
		return nil, errors.New("dangling line continuation")
	}
	flush()
	if len(decos) > 0 {
		return nil, errors.New("decorator without a following definition")
	}

	return stmts, nil
}

func classifyHead(head string) (stmtKind, string) {
	if m := fromRe.FindStringSubmatch(head); m != nil {
		return stmtFromImport, m[1]
	}
	if importRe.MatchString(head) {
		return stmtImport, ""
	}
	if m := defRe.FindStringSubmatch(head); m != nil {
		return stmtFunction, m[1]
	}
	if m := classRe.FindStringSubmatch(head); m != nil {
		return stmtClass, m[1]
	}
	if m := assignRe.FindStringSubmatch(head); m != nil {
		return stmtAssign, m[1]
	}
	return stmtOther, ""
}

// Package assemble merges translated code fragments into one coherent
// Python program: imports organized into groups, duplicate definitions
// merged, globals split into constants and variables, and top-level
// statements wrapped in a main guard when they look executable.
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/valpere/pseudotran/internal/block"
)

// sectionJoin separates stitched top-level sections.
const sectionJoin = "\n\n\n"

const (
	constantsHeader = "# Constants"
	variablesHeader = "# Global variables"
)

// scanCacheSize bounds the statement-scan cache. Identical block content
// recurs whenever imports and sections are collected in separate passes.
const scanCacheSize = 256

var constantRe = regexp.MustCompile(`^[A-Z_]+\s*=`)

// Config holds assembly preferences.
type Config struct {
	// IndentSize is the indentation width in spaces.
	IndentSize int `mapstructure:"indent_size"`
	// MaxLineLength is advisory; assembly never rewraps lines.
	MaxLineLength int `mapstructure:"max_line_length"`
	// PreserveComments keeps comments attached to the statement they precede.
	PreserveComments bool `mapstructure:"preserve_comments"`
	// PreserveDocstrings keeps the module docstring when one is found.
	PreserveDocstrings bool `mapstructure:"preserve_docstrings"`
	// AutoImportCommon injects from-imports for recognized usage of
	// well-known standard-library names.
	AutoImportCommon bool `mapstructure:"auto_import_common"`
}

// DefaultConfig returns the standard assembly preferences.
func DefaultConfig() Config {
	return Config{
		IndentSize:         4,
		MaxLineLength:      88,
		PreserveComments:   true,
		PreserveDocstrings: true,
		AutoImportCommon:   true,
	}
}

type scanResult struct {
	stmts []statement
	err   error
}

// Assembler combines code blocks into complete Python scripts. Safe for
// reuse across assemble calls; the scan cache persists between them.
type Assembler struct {
	cfg   Config
	cache *lru.Cache[string, scanResult]
}

// New returns an Assembler with the given preferences.
func New(cfg Config) *Assembler {
	cache, _ := lru.New[string, scanResult](scanCacheSize)
	return &Assembler{cfg: cfg, cache: cache}
}

// sections is the transient categorization of one assemble call.
type sections struct {
	docstring string
	functions []statement
	classes   []statement
	globals   []string
	main      []string
}

// Assemble merges blocks into a complete program. Empty input and input
// without any code blocks yield an empty string without error. Any stage
// failure returns a single structured *Error and no partial output.
func (a *Assembler) Assemble(blocks []block.Block) (out string, err error) {
	if len(blocks) == 0 {
		return "", nil
	}
	log.Info("assembling code blocks", "count", len(blocks))

	stage := "assembly"
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = stageError(stage, blocks, fmt.Errorf("%v", r))
		}
	}()

	python := filterBlocks(blocks)
	if len(python) == 0 {
		log.Warn("no code blocks found in input")
		return "", nil
	}

	stage = "imports"
	imports := a.collectImports(python)

	stage = "sections"
	secs := a.organizeSections(python)

	stage = "stitching"
	assembled := a.stitch(secs, imports)

	stage = "cleanup"
	final := a.postprocess(assembled)

	log.Debug("code assembly complete", "bytes", len(final))
	return final, nil
}

func stageError(stage string, blocks []block.Block, cause error) *Error {
	e := &Error{
		Stage:   stage,
		Message: "failed to assemble code blocks",
		Blocks:  blockInfos(blocks),
		Err:     cause,
	}
	switch stage {
	case "sections":
		e.Suggestions = []string{"check code block structure", "ensure valid Python syntax in all blocks"}
	case "stitching":
		e.Suggestions = []string{"check for naming conflicts", "ensure function and class definitions are valid"}
	case "cleanup":
		e.Suggestions = []string{"check for severe indentation errors", "ensure consistent use of spaces or tabs"}
	default:
		e.Suggestions = []string{"check block compatibility", "verify all blocks contain valid Python syntax"}
	}
	return e
}

// filterBlocks keeps only code-bearing blocks.
func filterBlocks(blocks []block.Block) []block.Block {
	var python []block.Block
	for _, b := range blocks {
		if b.Type == block.Python || b.Type == block.Mixed {
			python = append(python, b)
		}
	}
	if len(python) > 0 {
		log.Debug("filtered code blocks", "kept", len(python), "total", len(blocks))
	}
	return python
}

func (a *Assembler) scan(content string) ([]statement, error) {
	if res, ok := a.cache.Get(content); ok {
		return res.stmts, res.err
	}
	stmts, err := scanBlock(content, a.cfg.PreserveComments)
	a.cache.Add(content, scanResult{stmts: stmts, err: err})
	return stmts, err
}

// collectImports walks every block for import statements and renders the
// grouped import section.
func (a *Assembler) collectImports(blocks []block.Block) string {
	set := newImportSet()
	var all strings.Builder
	for _, b := range blocks {
		all.WriteString(b.Content)
		all.WriteByte('\n')

		stmts, err := a.scan(b.Content)
		if err != nil {
			log.Warn("could not parse imports from block", "lines", b.LineNumbers)
			continue
		}
		for _, s := range stmts {
			switch s.kind {
			case stmtImport:
				set.addPlain(s.text)
			case stmtFromImport:
				set.addFrom(s.name, s.text)
			}
		}
	}
	if a.cfg.AutoImportCommon {
		set.addCommonImports(all.String())
	}
	return set.section()
}

// organizeSections categorizes every top-level statement of every block.
// A block that fails to scan is preserved verbatim in the main section,
// never dropped.
func (a *Assembler) organizeSections(blocks []block.Block) *sections {
	secs := &sections{}
	for _, b := range blocks {
		stmts, err := a.scan(b.Content)
		if err != nil {
			log.Warn("could not parse block, keeping verbatim", "lines", b.LineNumbers, "error", err)
			secs.main = append(secs.main, b.Content)
			continue
		}
		for _, s := range stmts {
			switch s.kind {
			case stmtDocstring:
				if secs.docstring == "" && a.cfg.PreserveDocstrings {
					secs.docstring = s.text
				}
			case stmtImport, stmtFromImport:
				// collected separately
			case stmtFunction:
				secs.functions = append(secs.functions, s)
			case stmtClass:
				secs.classes = append(secs.classes, s)
			case stmtAssign:
				secs.globals = appendUnique(secs.globals, s.text)
			default:
				secs.main = appendUnique(secs.main, s.text)
			}
		}
	}
	return secs
}

// appendUnique collapses exact repeats: a statement arriving identically
// from more than one block is emitted once.
func appendUnique(list []string, text string) []string {
	for _, existing := range list {
		if existing == text {
			return list
		}
	}
	return append(list, text)
}

// stitch renders all sections and joins the non-empty ones in fixed order:
// docstring, imports, globals, functions, classes, main.
func (a *Assembler) stitch(secs *sections, imports string) string {
	functions := mergeDefinitions(secs.functions, "func")
	classes := mergeDefinitions(secs.classes, "class")
	globals := organizeGlobals(secs.globals)
	main := a.organizeMain(secs.main)

	var final []string
	for _, section := range []string{secs.docstring, imports, globals, functions, classes, main} {
		if section != "" {
			final = append(final, section)
		}
	}
	return strings.Join(final, sectionJoin)
}

// mergeDefinitions groups definitions by name. The last occurrence's body
// wins, the first occurrence's position is kept. Fragments without a
// recoverable name get a synthetic positional key so they are never merged
// or dropped.
func mergeDefinitions(items []statement, prefix string) string {
	if len(items) == 0 {
		return ""
	}
	var order []string
	byKey := make(map[string]string)
	for _, s := range items {
		key := s.name
		if key == "" {
			key = fmt.Sprintf("%s_%d", prefix, len(order))
		}
		if _, seen := byKey[key]; seen {
			log.Debug("replacing duplicate definition", "name", key)
		} else {
			order = append(order, key)
		}
		byKey[key] = s.text
	}
	parts := make([]string, len(order))
	for i, k := range order {
		parts[i] = byKey[k]
	}
	return strings.Join(parts, "\n\n")
}

// organizeGlobals splits top-level assignments into constants and variables,
// each under its own header.
func organizeGlobals(globals []string) string {
	if len(globals) == 0 {
		return ""
	}
	var constants, variables []string
	for _, g := range globals {
		stripped := strings.TrimSpace(g)
		if constantRe.MatchString(stripped) {
			constants = append(constants, stripped)
		} else {
			variables = append(variables, stripped)
		}
	}

	var lines []string
	if len(constants) > 0 {
		lines = append(lines, constantsHeader)
		lines = append(lines, constants...)
	}
	if len(variables) > 0 {
		if len(constants) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, variablesHeader)
		lines = append(lines, variables...)
	}
	return strings.Join(lines, "\n")
}

var (
	entrypointCallRe = regexp.MustCompile(`\b(main|run|execute|start)\s*\(`)
	exitCallRe       = regexp.MustCompile(`\b(sys\.exit|quit|exit)\s*\(`)
	bareCallRe       = regexp.MustCompile(`(?m)^\s*[a-zA-Z_][a-zA-Z0-9_]*\s*\(`)
)

// organizeMain concatenates remaining top-level statements and wraps them in
// a main guard when they look directly executable. An existing guard
// anywhere in the text disables wrapping. Detection is a pattern match and
// may mis-fire on call-like text inside strings or comments.
func (a *Assembler) organizeMain(main []string) string {
	if len(main) == 0 {
		return ""
	}
	code := strings.Join(main, "\n\n")

	if strings.Contains(code, `if __name__ == "__main__"`) ||
		strings.Contains(code, "if __name__ == '__main__'") {
		return code
	}

	needsGuard := strings.Contains(code, "print(") ||
		strings.Contains(code, "input(") ||
		entrypointCallRe.MatchString(code) ||
		exitCallRe.MatchString(code) ||
		bareCallRe.MatchString(code)
	if !needsGuard {
		return code
	}

	indent := strings.Repeat(" ", a.cfg.IndentSize)
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = indent + line
		}
	}
	return "if __name__ == \"__main__\":\n" + strings.Join(lines, "\n")
}

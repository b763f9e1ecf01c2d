package assemble

import (
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// importGroups is the fixed emission order of the import section.
var importGroups = []string{"standard", "third_party", "local"}

// standardLib is the known standard-library module set used to classify
// imports. Anything not listed and not relative is third party.
var standardLib = map[string]struct{}{
	"abc": {}, "argparse": {}, "array": {}, "ast": {}, "asyncio": {},
	"base64": {}, "bisect": {}, "builtins": {}, "calendar": {},
	"collections": {}, "configparser": {}, "contextlib": {}, "copy": {},
	"csv": {}, "dataclasses": {}, "datetime": {}, "decimal": {},
	"difflib": {}, "enum": {}, "functools": {}, "glob": {}, "gzip": {},
	"hashlib": {}, "heapq": {}, "html": {}, "http": {}, "io": {},
	"itertools": {}, "json": {}, "logging": {}, "math": {},
	"multiprocessing": {}, "operator": {}, "os": {}, "pathlib": {},
	"pickle": {}, "platform": {}, "random": {}, "re": {}, "shutil": {},
	"socket": {}, "sqlite3": {}, "statistics": {}, "string": {},
	"subprocess": {}, "sys": {}, "tempfile": {}, "threading": {},
	"time": {}, "typing": {}, "urllib": {}, "uuid": {}, "warnings": {},
	"weakref": {}, "xml": {}, "zipfile": {},
}

// commonImports maps well-known standard modules to function names whose
// call-like usage triggers auto-injection of the matching from-import.
var commonImports = []struct {
	module string
	names  []string
}{
	{"math", []string{"sin", "cos", "sqrt", "pi", "tan", "log", "exp"}},
	{"os", []string{"path", "getcwd", "listdir", "mkdir", "remove"}},
	{"sys", []string{"argv", "exit", "path", "platform"}},
	{"datetime", []string{"datetime", "date", "time", "timedelta"}},
	{"json", []string{"dumps", "loads", "dump", "load"}},
	{"re", []string{"match", "search", "findall", "sub", "compile"}},
	{"typing", []string{"List", "Dict", "Tuple", "Optional", "Union", "Any"}},
}

// importSet accumulates plain and from-imports per category. Plain imports
// are stored as complete lines; from-imports as a per-module name union.
type importSet struct {
	plain map[string]map[string]struct{}
	froms map[string]map[string]map[string]struct{}
}

func newImportSet() *importSet {
	s := &importSet{
		plain: make(map[string]map[string]struct{}),
		froms: make(map[string]map[string]map[string]struct{}),
	}
	for _, g := range importGroups {
		s.plain[g] = make(map[string]struct{})
		s.froms[g] = make(map[string]map[string]struct{})
	}
	return s
}

// categorizeImport assigns a module to exactly one import group. The top
// level of a dotted path decides; a leading dot or an empty module marks a
// relative, local import.
func categorizeImport(module string) string {
	top, _, _ := strings.Cut(module, ".")
	if _, ok := standardLib[top]; ok {
		return "standard"
	}
	if module == "" || strings.HasPrefix(module, ".") {
		return "local"
	}
	return "third_party"
}

// addPlain records every module of one plain import statement, splitting
// comma lists so each module lands in its own group.
func (s *importSet) addPlain(stmtText string) {
	flat := flattenStatement(stmtText)
	rest := strings.TrimSpace(strings.TrimPrefix(flat, "import "))
	for _, part := range strings.Split(rest, ",") {
		mod := strings.TrimSpace(part)
		if mod == "" {
			continue
		}
		// Classification ignores any alias; the emitted line keeps it.
		name := mod
		if base, _, ok := strings.Cut(mod, " as "); ok {
			name = strings.TrimSpace(base)
		}
		s.plain[categorizeImport(name)]["import "+mod] = struct{}{}
	}
}

// addFrom merges the names of one from-import into the module's union.
func (s *importSet) addFrom(module, stmtText string) {
	flat := flattenStatement(stmtText)
	_, namesPart, ok := strings.Cut(flat, " import ")
	if !ok {
		return
	}
	namesPart = strings.Trim(strings.TrimSpace(namesPart), "()")

	group := categorizeImport(module)
	if s.froms[group][module] == nil {
		s.froms[group][module] = make(map[string]struct{})
	}
	for _, part := range strings.Split(namesPart, ",") {
		if name := strings.TrimSpace(part); name != "" {
			s.froms[group][module][name] = struct{}{}
		}
	}
}

// alreadyImported reports whether name is reachable through an existing
// plain import of module or a from-import of name out of module.
func (s *importSet) alreadyImported(module, name string) bool {
	for _, g := range importGroups {
		if _, ok := s.plain[g]["import "+module]; ok {
			return true
		}
		if names, ok := s.froms[g][module]; ok {
			if _, ok := names[name]; ok {
				return true
			}
		}
	}
	return false
}

// addCommonImports scans the combined source for call-like usage of
// well-known standard-library names and injects the matching from-import.
// This is a pattern match, not a semantic check; it may both under- and
// over-inject.
func (s *importSet) addCommonImports(allCode string) {
	for _, ci := range commonImports {
		for _, name := range ci.names {
			pattern := regexp.MustCompile(`\b` + name + `\s*\(`)
			if !pattern.MatchString(allCode) {
				continue
			}
			if s.alreadyImported(ci.module, name) {
				continue
			}
			if s.froms["standard"][ci.module] == nil {
				s.froms["standard"][ci.module] = make(map[string]struct{})
			}
			s.froms["standard"][ci.module][name] = struct{}{}
			log.Debug("auto-adding import", "module", ci.module, "name", name)
		}
	}
}

// section renders the final import section: groups in fixed order, plain
// imports sorted before merged from-imports, one blank line between
// non-empty groups.
func (s *importSet) section() string {
	var lines []string
	for _, g := range importGroups {
		var groupLines []string

		plain := make([]string, 0, len(s.plain[g]))
		for line := range s.plain[g] {
			plain = append(plain, line)
		}
		sort.Strings(plain)
		groupLines = append(groupLines, plain...)

		modules := make([]string, 0, len(s.froms[g]))
		for mod := range s.froms[g] {
			modules = append(modules, mod)
		}
		sort.Strings(modules)
		for _, mod := range modules {
			names := make([]string, 0, len(s.froms[g][mod]))
			for n := range s.froms[g][mod] {
				names = append(names, n)
			}
			sort.Strings(names)
			groupLines = append(groupLines, "from "+mod+" import "+strings.Join(names, ", "))
		}

		if len(groupLines) > 0 {
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, groupLines...)
		}
	}
	return strings.Join(lines, "\n")
}

// flattenStatement collapses a possibly multi-line statement to one line so
// the comma-splitting above sees the whole name list. Comment lines attached
// to the statement are dropped.
func flattenStatement(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\\"))
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

package assemble

import (
	"fmt"
	"strings"

	"github.com/valpere/pseudotran/internal/block"
)

// BlockInfo identifies a block implicated in an assembly failure.
type BlockInfo struct {
	Type  block.Type
	Lines [2]int
}

// Error is the single structured failure Assemble can return. Assembly is
// all or nothing: when an Error comes back, no partial output was produced.
type Error struct {
	Stage       string
	Message     string
	Blocks      []BlockInfo
	Suggestions []string
	Err         error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Stage != "" {
		fmt.Fprintf(&sb, " (stage: %s)", e.Stage)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if len(e.Blocks) > 0 {
		fmt.Fprintf(&sb, " [%d blocks]", len(e.Blocks))
	}
	for _, s := range e.Suggestions {
		sb.WriteString("\n  suggestion: ")
		sb.WriteString(s)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func blockInfos(blocks []block.Block) []BlockInfo {
	infos := make([]BlockInfo, len(blocks))
	for i, b := range blocks {
		infos[i] = BlockInfo{Type: b.Type, Lines: b.LineNumbers}
	}
	return infos
}

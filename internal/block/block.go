// Package block defines the shared data types that flow through the
// translation pipeline: typed source blocks, input chunks, per-chunk
// results and stream-wide progress counters.
package block

import "time"

// Type classifies the content of a Block.
type Type string

const (
	// NaturalLanguage is untranslated prose describing intent.
	NaturalLanguage Type = "natural_language"
	// Python is target-language code, either authored or translated.
	Python Type = "python"
	// Mixed contains both prose and code and is passed through to assembly.
	Mixed Type = "mixed"
)

// Block is one typed unit of source content. Blocks are immutable once
// created: translation produces a new Block rather than mutating in place.
type Block struct {
	Type        Type
	Content     string
	LineNumbers [2]int
	Metadata    map[string]string
	Context     string
}

// Translated returns a new Python block carrying code as content while
// preserving the original block's position and context. The metadata is
// copied and marked translated.
func (b Block) Translated(code string) Block {
	md := make(map[string]string, len(b.Metadata)+1)
	for k, v := range b.Metadata {
		md[k] = v
	}
	md["translated"] = "true"
	return Block{
		Type:        Python,
		Content:     code,
		LineNumbers: b.LineNumbers,
		Metadata:    md,
		Context:     b.Context,
	}
}

// Chunk is a contiguous slice of the original input. Indices are zero-based,
// strictly increasing and contiguous across the whole input; the union of all
// chunk contents reconstructs the input.
type Chunk struct {
	Index   int
	Content string
	Size    int
}

// ChunkResult is the outcome of processing one Chunk. It is created once per
// chunk and never mutated after being placed in the chunk buffer.
type ChunkResult struct {
	Index            int
	Success          bool
	ParsedBlocks     []Block
	TranslatedBlocks []Block
	Err              string
	Warnings         []string
	ProcessingTime   time.Duration
}

// StreamingProgress holds process-wide counters for one streaming run.
// It is mutated only by the pipeline; observers receive copies.
type StreamingProgress struct {
	TotalChunks     int
	ProcessedChunks int
	CurrentChunk    int
	BytesProcessed  int
	TotalBytes      int
	Errors          []string
	Warnings        []string
}

// Percentage reports completion as a value in [0, 100].
func (p StreamingProgress) Percentage() float64 {
	if p.TotalChunks == 0 {
		return 0
	}
	return float64(p.ProcessedChunks) / float64(p.TotalChunks) * 100
}

// Complete reports whether every chunk has been processed.
func (p StreamingProgress) Complete() bool {
	return p.TotalChunks > 0 && p.ProcessedChunks >= p.TotalChunks
}

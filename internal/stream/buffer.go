package stream

import (
	"sync"

	"github.com/valpere/pseudotran/internal/block"
)

// Buffer maps chunk index to its result. Workers write results as they
// complete; assembly reads them back in index order, which defeats any
// completion-order reordering. Safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	results map[int]*block.ChunkResult
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{results: make(map[int]*block.ChunkResult)}
}

// Add stores the result for a chunk index. Results are never overwritten:
// the first write for an index wins, matching the create-once contract.
func (b *Buffer) Add(index int, res *block.ChunkResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.results[index]; !ok {
		b.results[index] = res
	}
}

// Get returns the result for index, or nil when not yet present.
func (b *Buffer) Get(index int) *block.ChunkResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.results[index]
}

// Len reports how many results are buffered.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.results)
}

// Bytes reports the total content size held in the buffer, counting both
// parsed and translated block text.
func (b *Buffer) Bytes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, res := range b.results {
		for _, blk := range res.TranslatedBlocks {
			total += len(blk.Content)
		}
	}
	return total
}

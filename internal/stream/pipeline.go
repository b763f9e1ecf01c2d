package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/valpere/pseudotran/internal/block"
	"github.com/valpere/pseudotran/internal/chunker"
	"github.com/valpere/pseudotran/internal/events"
	"github.com/valpere/pseudotran/internal/parser"
	"github.com/valpere/pseudotran/internal/translator"
)

// Assembler merges ordered translated blocks into one program. Implemented
// by the assemble package; declared here so the pipeline does not depend on
// assembly details.
type Assembler interface {
	Assemble(blocks []block.Block) (string, error)
}

// ProgressFunc observes progress snapshots. Callbacks run on the reporter
// goroutine; panics are recovered and logged, never propagated.
type ProgressFunc func(block.StreamingProgress)

// Pipeline orchestrates chunked translation. A Pipeline runs one stream and
// is not restartable; construct a new one per input.
type Pipeline struct {
	cfg        Config
	parser     parser.Parser
	translator translator.Translator
	dispatcher *events.Dispatcher
	sizer      chunker.Sizer

	buffer *Buffer
	window *ContextWindow

	translationID string

	progMu    sync.Mutex
	progress  block.StreamingProgress
	callbacks []ProgressFunc

	produced atomic.Int64

	started      atomic.Bool
	stopped      atomic.Bool
	cancel       context.CancelFunc
	reporterStop chan struct{}
	reporterDone chan struct{}
	stopReporter sync.Once
}

// New returns a Pipeline over the given collaborators. dispatcher may be nil
// when no observer is interested.
func New(cfg Config, p parser.Parser, tr translator.Translator, dispatcher *events.Dispatcher) *Pipeline {
	if dispatcher == nil {
		dispatcher = events.New()
	}
	pl := &Pipeline{
		cfg:           cfg,
		parser:        p,
		translator:    tr,
		dispatcher:    dispatcher,
		buffer:        NewBuffer(),
		window:        NewContextWindow(),
		translationID: uuid.New().String(),
		reporterStop:  make(chan struct{}),
		reporterDone:  make(chan struct{}),
	}
	if cfg.AdaptiveSizing {
		pl.sizer = chunker.NewAdaptiveSizer(cfg.ChunkSize)
	}
	return pl
}

// ShouldStream reports whether input is large enough to stream under cfg.
func ShouldStream(cfg Config, input string) bool {
	return cfg.EnableStreaming && len(input) >= cfg.MinStreamSize
}

// OnProgress registers a progress callback. Must be called before Stream.
func (p *Pipeline) OnProgress(f ProgressFunc) {
	p.callbacks = append(p.callbacks, f)
}

// Progress returns a snapshot of the current counters.
func (p *Pipeline) Progress() block.StreamingProgress {
	p.progMu.Lock()
	defer p.progMu.Unlock()
	return p.progress
}

// Buffer exposes the chunk buffer for context lookups and ordered retrieval.
func (p *Pipeline) Buffer() *Buffer {
	return p.buffer
}

// Stream processes input and returns a channel of chunk results in completion
// order, which in parallel mode may differ from index order. The chunk buffer
// retains every result keyed by index for ordered retrieval afterwards.
func (p *Pipeline) Stream(ctx context.Context, input string) <-chan block.ChunkResult {
	out := make(chan block.ChunkResult)
	if !p.started.CompareAndSwap(false, true) {
		close(out)
		return out
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.progMu.Lock()
	p.progress.TotalBytes = len(input)
	p.progress.TotalChunks = estimateChunks(len(input), p.cfg.ChunkSize)
	p.progMu.Unlock()

	src := chunker.NewSource(input, chunker.Options{
		ChunkSize:        p.cfg.ChunkSize,
		MaxContextLength: p.cfg.MaxContextLength,
		Sizer:            p.sizer,
		OnResize: func(d chunker.Decision) {
			p.dispatcher.Dispatch(events.Event{
				Type:   events.StreamDecision,
				Source: "stream.Pipeline",
				Data: map[string]any{
					"previous_size": d.Previous,
					"next_size":     d.Next,
					"direction":     d.Direction,
				},
			})
		},
	})

	go p.reportProgress()

	go func() {
		defer close(out)
		defer p.finish()

		if p.cfg.MaxConcurrentChunks > 1 {
			p.runParallel(ctx, src, out)
		} else {
			p.runSequential(ctx, src, out)
		}
	}()

	return out
}

// Cancel halts new chunk submissions promptly. In-flight chunks run to
// completion or their own timeout in the background; they are not awaited.
func (p *Pipeline) Cancel() {
	p.stopped.Store(true)
	if p.cancel != nil {
		p.cancel()
	}
	log.Info("streaming cancelled", "translation_id", p.translationID)
}

// Shutdown cancels the stream and waits for the progress reporter to stop,
// bounded by ctx. A pipeline whose Stream never ran has no reporter to wait
// for and shuts down immediately.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.Cancel()
	if !p.started.Load() {
		return nil
	}
	p.stopReporter.Do(func() { close(p.reporterStop) })
	select {
	case <-p.reporterDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OrderedBlocks returns every translated block across all buffered chunks in
// original input order, regardless of completion order.
func (p *Pipeline) OrderedBlocks() []block.Block {
	var blocks []block.Block
	for i := 0; i < int(p.produced.Load()); i++ {
		res := p.buffer.Get(i)
		if res == nil {
			continue
		}
		blocks = append(blocks, res.TranslatedBlocks...)
	}
	return blocks
}

// AssembleStreamed merges all buffered chunk output into the final program.
func (p *Pipeline) AssembleStreamed(a Assembler) (string, error) {
	return a.Assemble(p.OrderedBlocks())
}

// MemoryUsage reports current retention in bytes per component.
func (p *Pipeline) MemoryUsage() map[string]int {
	return map[string]int{
		"buffer_bytes":         p.buffer.Bytes(),
		"context_window_bytes": p.window.Bytes(),
	}
}

// --- run modes ---

func (p *Pipeline) runSequential(ctx context.Context, src *chunker.Source, out chan<- block.ChunkResult) {
	for {
		if p.stopped.Load() || ctx.Err() != nil {
			return
		}
		c, ok := src.Next()
		if !ok {
			return
		}
		p.produced.Add(1)
		p.setCurrentChunk(c.Index)

		res := p.processChunk(ctx, c)
		p.recordResult(c, res)

		select {
		case out <- *res:
		case <-ctx.Done():
			return
		}
	}
}

type chunkOutcome struct {
	chunk block.Chunk
	res   *block.ChunkResult
}

func (p *Pipeline) runParallel(ctx context.Context, src *chunker.Source, out chan<- block.ChunkResult) {
	// Outstanding work (submitted but not yet collected) never exceeds this
	// window; acquiring blocks submission until a completion frees capacity.
	sem := semaphore.NewWeighted(int64(p.cfg.outstandingLimit()))

	jobs := make(chan block.Chunk)
	results := make(chan chunkOutcome)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.workerCount(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results <- chunkOutcome{chunk: c, res: p.processChunk(ctx, c)}
			}
		}()
	}

	// Producer: submission boundary is the only cancellation check.
	go func() {
		defer close(jobs)
		for {
			if p.stopped.Load() {
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			c, ok := src.Next()
			if !ok {
				sem.Release(1)
				return
			}
			p.produced.Add(1)
			p.setCurrentChunk(c.Index)
			select {
			case jobs <- c:
			case <-ctx.Done():
				sem.Release(1)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for oc := range results {
		p.recordResult(oc.chunk, oc.res)
		select {
		case out <- *oc.res:
		case <-ctx.Done():
		}
		sem.Release(1)
	}
}

// --- chunk processing ---

// processChunk runs one chunk through context injection, parse and
// translation. Failures of any kind degrade to a failed ChunkResult; the
// stream always continues.
func (p *Pipeline) processChunk(ctx context.Context, c block.Chunk) (res *block.ChunkResult) {
	start := time.Now()
	res = &block.ChunkResult{Index: c.Index, Success: true}
	defer func() {
		if r := recover(); r != nil {
			log.Error("chunk processing panicked", "chunk", c.Index, "panic", r)
			res.Success = false
			res.Err = fmt.Sprintf("panic: %v", r)
		}
		res.ProcessingTime = time.Since(start)
	}()

	cctx := ctx
	if p.cfg.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, p.cfg.ChunkTimeout)
		defer cancel()
	}

	prefix := p.contextPrefix(c.Index)
	parseRes := p.parser.Parse(prefix + c.Content)
	if !parseRes.Success {
		res.Success = false
		res.Err = "parse error: " + strings.Join(parseRes.Warnings, "; ")
		return res
	}
	res.ParsedBlocks = ownBlocks(parseRes.Blocks, prefix)
	res.Warnings = append(res.Warnings, parseRes.Warnings...)

	translated := make([]block.Block, 0, len(res.ParsedBlocks))
	for _, blk := range res.ParsedBlocks {
		if blk.Type != block.NaturalLanguage {
			translated = append(translated, blk)
			continue
		}
		if err := cctx.Err(); err != nil {
			res.Success = false
			res.Err = fmt.Sprintf("chunk %d timed out: %v", c.Index, err)
			return res
		}

		tres, terr := p.translator.Translate(cctx, translator.Request{
			Text:           blk.Content,
			TargetLanguage: "Python",
			Context:        p.translationContext(c.Index),
		})
		if terr != nil || tres == nil || !tres.Success {
			if cctx.Err() != nil {
				res.Success = false
				res.Err = fmt.Sprintf("chunk %d timed out: %v", c.Index, cctx.Err())
				return res
			}
			msg := "no code returned"
			if terr != nil {
				msg = terr.Error()
			} else if tres != nil && len(tres.Errors) > 0 {
				msg = strings.Join(tres.Errors, ", ")
			}
			log.Warn("translation failed, keeping original block", "chunk", c.Index, "error", msg)
			res.Warnings = append(res.Warnings, fmt.Sprintf("translation error: %s", msg))
			translated = append(translated, blk)
			continue
		}

		res.Warnings = append(res.Warnings, tres.Warnings...)
		translated = append(translated, blk.Translated(tres.Code))
	}
	res.TranslatedBlocks = translated

	if p.cfg.MaintainContextWindow {
		for _, blk := range translated {
			if blk.Type == block.Python {
				p.window.Add(c.Index, blk.Content)
			}
		}
	}

	return res
}

// contextTailLines bounds how many trailing lines of the previous chunk's
// last translated block are prepended to the parse input.
const contextTailLines = 10

// contextPrefix builds the tail of the previous chunk's translated content,
// terminated by a chunk separator comment, for prepending to the parse
// input. In parallel mode the previous chunk may not be buffered yet;
// context is then best-effort and the prefix is empty.
func (p *Pipeline) contextPrefix(index int) string {
	if !p.cfg.MaintainContextWindow || index == 0 {
		return ""
	}
	prev := p.buffer.Get(index - 1)
	if prev == nil || len(prev.TranslatedBlocks) == 0 {
		return ""
	}
	last := prev.TranslatedBlocks[len(prev.TranslatedBlocks)-1]
	lines := strings.Split(last.Content, "\n")
	if len(lines) > contextTailLines {
		lines = lines[len(lines)-contextTailLines:]
	}
	return fmt.Sprintf("%s\n\n# --- Chunk %d ---\n\n", strings.Join(lines, "\n"), index)
}

// ownBlocks drops blocks that lie entirely within the injected context
// prefix. The prefix exists so the parser sees the surrounding code; its
// content already belongs to the previous chunk's result.
func ownBlocks(blocks []block.Block, prefix string) []block.Block {
	if prefix == "" {
		return blocks
	}
	prefixLines := strings.Count(prefix, "\n")
	own := blocks[:0]
	for _, blk := range blocks {
		if blk.LineNumbers[1] > prefixLines {
			own = append(own, blk)
		}
	}
	return own
}

// translationContext builds the context map passed to the translator. The
// tail of the sliding window of recently translated code, bounded by the
// configured character budget, rides along so the model sees what it already
// produced. In parallel mode the window may lag the chunk being processed;
// context is then best-effort.
func (p *Pipeline) translationContext(index int) map[string]string {
	tctx := map[string]string{
		translator.CtxTranslationID: p.translationID,
		translator.CtxChunkIndex:    fmt.Sprintf("%d", index),
	}
	if !p.cfg.MaintainContextWindow || index == 0 {
		return tctx
	}
	before := p.window.Tail(p.cfg.ContextWindowSize)
	if before == "" {
		return tctx
	}
	tctx[translator.CtxCode] = before
	tctx[translator.CtxBefore] = fmt.Sprintf("%s\n\n# --- Chunk %d ---", before, index)
	return tctx
}

// --- bookkeeping ---

func (p *Pipeline) setCurrentChunk(index int) {
	p.progMu.Lock()
	p.progress.CurrentChunk = index
	p.progMu.Unlock()
}

// recordResult buffers the finished result and is the single writer of the
// progress counters. Failed results are buffered too; they carry no blocks
// but keep the buffer index-complete.
func (p *Pipeline) recordResult(c block.Chunk, res *block.ChunkResult) {
	p.buffer.Add(c.Index, res)

	p.progMu.Lock()
	p.progress.ProcessedChunks++
	p.progress.BytesProcessed += c.Size
	if res.Err != "" {
		p.progress.Errors = append(p.progress.Errors, res.Err)
	}
	p.progress.Warnings = append(p.progress.Warnings, res.Warnings...)
	p.progMu.Unlock()

	if p.sizer != nil {
		p.sizer.Record(c.Size, res.ProcessingTime, res.Success)
	}

	p.dispatcher.Dispatch(events.Event{
		Type:   events.ChunkProcessed,
		Source: "stream.Pipeline",
		Data: map[string]any{
			"index":       res.Index,
			"success":     res.Success,
			"duration_ms": res.ProcessingTime.Milliseconds(),
		},
	})
}

func (p *Pipeline) finish() {
	produced := int(p.produced.Load())
	p.progMu.Lock()
	if produced > 0 {
		p.progress.TotalChunks = produced
	}
	processed := p.progress.ProcessedChunks
	p.progMu.Unlock()

	p.dispatcher.Dispatch(events.Event{
		Type:   events.StreamCompleted,
		Source: "stream.Pipeline",
		Data:   map[string]any{"chunks": processed},
	})

	p.stopReporter.Do(func() { close(p.reporterStop) })
}

// reportProgress ticks on a fixed interval independent of worker execution,
// invoking every registered callback with a snapshot. Callback panics are
// logged and swallowed.
func (p *Pipeline) reportProgress() {
	defer close(p.reporterDone)
	if p.cfg.ProgressInterval <= 0 || len(p.callbacks) == 0 {
		<-p.reporterStop
		return
	}
	ticker := time.NewTicker(p.cfg.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.reporterStop:
			return
		case <-ticker.C:
			snap := p.Progress()
			for _, cb := range p.callbacks {
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error("progress callback panicked", "panic", r)
						}
					}()
					cb(snap)
				}()
			}
		}
	}
}

func estimateChunks(totalBytes, chunkSize int) int {
	if totalBytes == 0 {
		return 0
	}
	if chunkSize <= 0 {
		return 1
	}
	return (totalBytes + chunkSize - 1) / chunkSize
}

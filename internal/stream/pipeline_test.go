package stream_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/pseudotran/internal/block"
	"github.com/valpere/pseudotran/internal/parser"
	"github.com/valpere/pseudotran/internal/stream"
	"github.com/valpere/pseudotran/internal/translator"
)

// stubParser classifies each blank-line-separated segment without the cost
// of the real language detector: segments containing "=" are code, the rest
// natural language.
type stubParser struct{}

func (stubParser) Parse(content string) *parser.Result {
	res := &parser.Result{Success: true}
	line := 1
	for _, seg := range strings.Split(content, "\n\n") {
		n := strings.Count(seg, "\n") + 1
		trimmed := strings.TrimSpace(seg)
		if trimmed != "" {
			typ := block.NaturalLanguage
			if strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
				typ = block.Python
			}
			res.Blocks = append(res.Blocks, block.Block{
				Type:        typ,
				Content:     trimmed,
				LineNumbers: [2]int{line, line + n - 1},
				Metadata:    map[string]string{},
			})
		}
		line += n + 1
	}
	return res
}

func testInput(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("translate paragraph number ")
		sb.WriteString(strings.Repeat("x", 10))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func collect(ch <-chan block.ChunkResult) []block.ChunkResult {
	var out []block.ChunkResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func seqConfig() stream.Config {
	cfg := stream.DefaultConfig()
	cfg.ChunkSize = 48
	cfg.MaxConcurrentChunks = 1
	cfg.ProgressInterval = 0
	return cfg
}

func parConfig() stream.Config {
	cfg := seqConfig()
	cfg.MaxConcurrentChunks = 3
	cfg.MaxQueueSize = 4
	return cfg
}

func TestStream_EmptyInput(t *testing.T) {
	p := stream.New(seqConfig(), stubParser{}, &translator.MockTranslator{}, nil)
	results := collect(p.Stream(context.Background(), ""))
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if got := p.Progress().TotalChunks; got != 0 {
		t.Errorf("expected 0 total chunks, got %d", got)
	}
}

func TestStream_SequentialOrder(t *testing.T) {
	p := stream.New(seqConfig(), stubParser{}, &translator.MockTranslator{}, nil)
	results := collect(p.Stream(context.Background(), testInput(6)))
	if len(results) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if !r.Success {
			t.Errorf("chunk %d failed: %s", r.Index, r.Err)
		}
	}

	prog := p.Progress()
	if prog.ProcessedChunks != len(results) {
		t.Errorf("processed %d != results %d", prog.ProcessedChunks, len(results))
	}
	if prog.TotalChunks != len(results) {
		t.Errorf("total %d != results %d", prog.TotalChunks, len(results))
	}
	if prog.BytesProcessed != prog.TotalBytes {
		t.Errorf("bytes processed %d != total %d", prog.BytesProcessed, prog.TotalBytes)
	}
}

func TestStream_ParallelMatchesSequential(t *testing.T) {
	input := testInput(10)

	seq := stream.New(seqConfig(), stubParser{}, &translator.MockTranslator{}, nil)
	collect(seq.Stream(context.Background(), input))

	par := stream.New(parConfig(), stubParser{}, &translator.MockTranslator{Delay: time.Millisecond}, nil)
	collect(par.Stream(context.Background(), input))

	seqBlocks := seq.OrderedBlocks()
	parBlocks := par.OrderedBlocks()
	if len(seqBlocks) == 0 || len(seqBlocks) != len(parBlocks) {
		t.Fatalf("block count mismatch: %d vs %d", len(seqBlocks), len(parBlocks))
	}
	for i := range seqBlocks {
		if seqBlocks[i].Content != parBlocks[i].Content {
			t.Errorf("block %d differs:\nseq: %q\npar: %q", i, seqBlocks[i].Content, parBlocks[i].Content)
		}
	}
}

func TestStream_ParallelConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	tr := &translator.MockTranslator{
		Func: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &translator.Result{Success: true, Code: "pass"}, nil
		},
	}

	cfg := parConfig()
	p := stream.New(cfg, stubParser{}, tr, nil)
	collect(p.Stream(context.Background(), testInput(20)))

	if got := maxInFlight.Load(); got > int64(cfg.MaxConcurrentChunks) {
		t.Errorf("concurrent translations %d exceeded limit %d", got, cfg.MaxConcurrentChunks)
	}
}

func TestStream_TranslationFailureKeepsOriginal(t *testing.T) {
	tr := &translator.MockTranslator{FailTexts: []string{"paragraph"}}
	p := stream.New(seqConfig(), stubParser{}, tr, nil)
	results := collect(p.Stream(context.Background(), testInput(3)))

	for _, r := range results {
		if !r.Success {
			t.Errorf("chunk %d: block-level failure must not fail the chunk", r.Index)
		}
		if len(r.Warnings) == 0 {
			t.Errorf("chunk %d: expected a translation warning", r.Index)
		}
		for _, b := range r.TranslatedBlocks {
			if b.Type != block.NaturalLanguage {
				t.Errorf("chunk %d: original block not preserved", r.Index)
			}
		}
	}
}

func TestStream_ChunkTimeoutDegradesToFailure(t *testing.T) {
	cfg := seqConfig()
	cfg.ChunkTimeout = 30 * time.Millisecond
	tr := &translator.MockTranslator{Delay: 500 * time.Millisecond}
	p := stream.New(cfg, stubParser{}, tr, nil)

	results := collect(p.Stream(context.Background(), testInput(2)))
	if len(results) != 2 {
		t.Fatalf("stream must continue past a timed-out chunk, got %d results", len(results))
	}
	for _, r := range results {
		if r.Success {
			t.Errorf("chunk %d should have timed out", r.Index)
		}
		if !strings.Contains(r.Err, "timed out") {
			t.Errorf("chunk %d error not timeout-indicating: %q", r.Index, r.Err)
		}
	}
}

func TestStream_CancelHaltsSubmission(t *testing.T) {
	tr := &translator.MockTranslator{Delay: 20 * time.Millisecond}
	p := stream.New(seqConfig(), stubParser{}, tr, nil)

	ch := p.Stream(context.Background(), testInput(50))
	<-ch
	p.Cancel()

	done := make(chan struct{})
	go func() {
		collect(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	if got := p.Progress().ProcessedChunks; got >= 50 {
		t.Errorf("cancel did not halt submissions: processed %d", got)
	}
}

func TestStream_ProgressCallbacks(t *testing.T) {
	cfg := seqConfig()
	cfg.ProgressInterval = 5 * time.Millisecond

	var mu sync.Mutex
	ticks := 0

	tr := &translator.MockTranslator{Delay: 2 * time.Millisecond}
	p := stream.New(cfg, stubParser{}, tr, nil)
	p.OnProgress(func(block.StreamingProgress) { panic("observer bug") })
	p.OnProgress(func(prog block.StreamingProgress) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	collect(p.Stream(context.Background(), testInput(20)))
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks == 0 {
		t.Error("progress callback never invoked")
	}
}

func TestStream_ContextCarriedBetweenChunks(t *testing.T) {
	var mu sync.Mutex
	var contexts []map[string]string
	tr := &translator.MockTranslator{
		Func: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
			mu.Lock()
			cp := make(map[string]string, len(req.Context))
			for k, v := range req.Context {
				cp[k] = v
			}
			contexts = append(contexts, cp)
			mu.Unlock()
			return &translator.Result{Success: true, Code: "marker_" + req.Context[translator.CtxChunkIndex] + " = True"}, nil
		},
	}

	p := stream.New(seqConfig(), stubParser{}, tr, nil)
	collect(p.Stream(context.Background(), testInput(4)))

	if len(contexts) < 2 {
		t.Fatalf("expected several translation calls, got %d", len(contexts))
	}
	first := contexts[0]
	if first[translator.CtxTranslationID] == "" {
		t.Error("missing translation_id")
	}
	if first[translator.CtxBefore] != "" {
		t.Error("first chunk should have no preceding context")
	}
	second := contexts[1]
	if !strings.Contains(second[translator.CtxBefore], "marker_0") {
		t.Errorf("second chunk context missing previous code: %q", second[translator.CtxBefore])
	}
}

func TestStream_BufferAndMemoryAccounting(t *testing.T) {
	p := stream.New(seqConfig(), stubParser{}, &translator.MockTranslator{}, nil)
	results := collect(p.Stream(context.Background(), testInput(4)))
	if len(results) == 0 {
		t.Fatal("expected results")
	}

	if got := p.Buffer().Len(); got != len(results) {
		t.Errorf("buffer holds %d results, stream yielded %d", got, len(results))
	}
	for _, r := range results {
		if p.Buffer().Get(r.Index) == nil {
			t.Errorf("chunk %d missing from buffer", r.Index)
		}
	}

	usage := p.MemoryUsage()
	if usage["buffer_bytes"] <= 0 {
		t.Errorf("buffer bytes not accounted: %v", usage)
	}
	if usage["context_window_bytes"] <= 0 {
		t.Errorf("context window bytes not accounted: %v", usage)
	}
}

func TestShutdown_BeforeStreamReturnsImmediately(t *testing.T) {
	p := stream.New(seqConfig(), stubParser{}, &translator.MockTranslator{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown of an unstarted pipeline must not block: %v", err)
	}
}

func TestShouldStream(t *testing.T) {
	cfg := stream.DefaultConfig()
	cfg.MinStreamSize = 10
	if stream.ShouldStream(cfg, "tiny") {
		t.Error("small input should not stream")
	}
	if !stream.ShouldStream(cfg, strings.Repeat("a", 20)) {
		t.Error("large input should stream")
	}
	cfg.EnableStreaming = false
	if stream.ShouldStream(cfg, strings.Repeat("a", 20)) {
		t.Error("disabled streaming must not stream")
	}
}

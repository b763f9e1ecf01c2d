/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/valpere/pseudotran/internal/assemble"
	"github.com/valpere/pseudotran/internal/block"
	"github.com/valpere/pseudotran/internal/events"
	"github.com/valpere/pseudotran/internal/parser"
	"github.com/valpere/pseudotran/internal/stream"
	"github.com/valpere/pseudotran/internal/translator"
)

var (
	inputFile  string
	outputFile string

	ollamaURL   string
	ollamaModel string
	useMock     bool

	dbPath   string
	noMemory bool

	workers      int
	chunkSize    int
	chunkTimeout time.Duration
	adaptive     bool
	noStream     bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a pseudocode file into Python",
	Long: `Translate a pseudocode file into a runnable Python script.

The input is split into blocks of natural language and literal code.
Natural-language blocks are translated by the configured Ollama model;
code blocks pass through unchanged. All fragments are then merged into
one script: imports grouped and deduplicated, duplicate definitions
merged, executable top-level statements wrapped in a main guard.

Inputs above the streaming threshold are processed in chunks, bounded
by the configured concurrency and backpressure limits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(raw)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := loadStreamConfig()
		if workers > 0 {
			cfg.MaxConcurrentChunks = workers
		}
		if chunkSize > 0 {
			cfg.ChunkSize = chunkSize
		}
		if chunkTimeout > 0 {
			cfg.ChunkTimeout = chunkTimeout
		}
		if adaptive {
			cfg.AdaptiveSizing = true
		}
		if noStream {
			cfg.EnableStreaming = false
		}

		tr, closeTr, err := buildTranslator(useMock, ollamaURL, ollamaModel, dbPath, noMemory)
		if err != nil {
			return err
		}
		defer closeTr()

		asm := assemble.New(loadAssembleConfig())
		par := parser.New()

		var code string
		if stream.ShouldStream(cfg, text) {
			code, err = runStreaming(ctx, cfg, par, tr, asm, text)
		} else {
			code, err = runDirect(ctx, par, tr, asm, text)
		}
		if err != nil {
			return err
		}

		if dir := filepath.Dir(outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(outputFile, []byte(code), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		fmt.Printf("Successfully translated %s to %s\n", inputFile, outputFile)
		return nil
	},
}

// runStreaming pushes the input through the chunked pipeline and assembles
// the buffered results in chunk order.
func runStreaming(ctx context.Context, cfg stream.Config, par parser.Parser, tr translator.Translator, asm *assemble.Assembler, text string) (string, error) {
	dispatcher := events.New()
	dispatcher.Subscribe(func(ev events.Event) {
		log.Debug("pipeline event", "type", ev.Type, "data", ev.Data)
	})

	p := stream.New(cfg, par, tr, dispatcher)
	p.OnProgress(func(prog block.StreamingProgress) {
		fmt.Fprintf(os.Stderr, "\rprogress: %3.0f%% (chunk %d/%d)",
			prog.Percentage(), prog.ProcessedChunks, prog.TotalChunks)
	})

	failed := 0
	for res := range p.Stream(ctx, text) {
		if !res.Success {
			failed++
			log.Warn("chunk failed", "index", res.Index, "error", res.Err)
		}
	}
	fmt.Fprintln(os.Stderr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		log.Warn("pipeline shutdown timed out", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("translation cancelled: %w", err)
	}

	usage := p.MemoryUsage()
	log.Debug("pipeline retention",
		"buffer_bytes", usage["buffer_bytes"],
		"context_window_bytes", usage["context_window_bytes"])

	prog := p.Progress()
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d chunks failed; their content is carried through untranslated\n",
			failed, prog.TotalChunks)
	}

	return p.AssembleStreamed(asm)
}

// runDirect handles inputs below the streaming threshold in one pass.
func runDirect(ctx context.Context, par parser.Parser, tr translator.Translator, asm *assemble.Assembler, text string) (string, error) {
	parsed := par.Parse(text)
	for _, w := range parsed.Warnings {
		log.Warn("parse warning", "warning", w)
	}

	blocks := make([]block.Block, 0, len(parsed.Blocks))
	for _, b := range parsed.Blocks {
		if b.Type != block.NaturalLanguage {
			blocks = append(blocks, b)
			continue
		}
		res, err := tr.Translate(ctx, translator.Request{
			Text:           b.Content,
			TargetLanguage: "Python",
			Context:        map[string]string{translator.CtxApproach: "full_document"},
		})
		if err != nil || res == nil || !res.Success {
			if ctx.Err() != nil {
				return "", fmt.Errorf("translation cancelled: %w", ctx.Err())
			}
			log.Warn("translation failed, keeping original block", "lines", b.LineNumbers)
			blocks = append(blocks, b)
			continue
		}
		blocks = append(blocks, b.Translated(res.Code))
	}

	return asm.Assemble(blocks)
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input pseudocode file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output Python file (required)")

	translateCmd.Flags().StringVar(&ollamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	translateCmd.Flags().StringVar(&ollamaModel, "model", translator.DefaultOllamaModel, "Ollama model name")
	translateCmd.Flags().BoolVar(&useMock, "mock", false, "Use the deterministic offline translator (for dry runs)")

	translateCmd.Flags().StringVar(&dbPath, "db", "./data/pseudotran.db", "Database path for translation memory")
	translateCmd.Flags().BoolVar(&noMemory, "no-memory", false, "Disable the translation memory cache")

	translateCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent chunks (1 = sequential, 0 = config default)")
	translateCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Target chunk size in characters (0 = config default)")
	translateCmd.Flags().DurationVar(&chunkTimeout, "chunk-timeout", 0, "Per-chunk timeout (0 = config default)")
	translateCmd.Flags().BoolVar(&adaptive, "adaptive", false, "Adapt chunk size to observed translation latency")
	translateCmd.Flags().BoolVar(&noStream, "no-stream", false, "Process the whole input in one pass")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}

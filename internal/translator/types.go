// Package translator defines the translation collaborator contract and its
// implementations: an Ollama-backed LLM client, a deterministic mock for
// tests, and a sqlite-backed translation memory decorator.
package translator

import (
	"context"
	"time"
)

// Context keys understood by translators.
const (
	CtxTranslationID = "translation_id"
	CtxChunkIndex    = "chunk_index"
	CtxApproach      = "approach"
	CtxBefore        = "before"
	CtxCode          = "code"
)

// Request carries one natural-language text to translate plus the
// surrounding context assembled by the pipeline. The before/code values are
// bounded by the configured context window size.
type Request struct {
	Text           string
	TargetLanguage string
	Context        map[string]string
}

// Result is the outcome of one translation call. A failed call returns
// Success=false with Errors populated; translators do not panic.
type Result struct {
	Success  bool
	Code     string
	Errors   []string
	Warnings []string
	Metadata map[string]string
	Latency  time.Duration
}

// Translator translates one block of natural language into target-language
// code. Implementations must be callable multiple times with different
// contexts and are treated as blocking from the caller's perspective.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req Request) (*Result, error)
	IsAvailable(ctx context.Context) error
}

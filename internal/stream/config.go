// Package stream orchestrates chunked translation: it feeds chunks through
// parse and translate stages in sequential or bounded-parallel mode, enforces
// backpressure, tracks progress, and buffers results by index so assembly
// always observes chunks in original input order.
package stream

import "time"

// Config is an immutable snapshot of streaming settings, captured at pipeline
// construction and never mutated during a run.
type Config struct {
	// EnableStreaming gates the streaming path entirely.
	EnableStreaming bool `mapstructure:"enable_streaming"`
	// MinStreamSize is the smallest input, in bytes, worth streaming.
	MinStreamSize int `mapstructure:"min_stream_size"`
	// ChunkSize is the default target chunk length in characters.
	ChunkSize int `mapstructure:"chunk_size"`
	// MaxContextLength caps adaptive size proposals at twice its value.
	MaxContextLength int `mapstructure:"max_context_length"`
	// MaxConcurrentChunks selects the mode: 1 means sequential, more means
	// a bounded-parallel worker pool of that width.
	MaxConcurrentChunks int `mapstructure:"max_concurrent_chunks"`
	// ChunkTimeout degrades a slow chunk into a failed result.
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"`
	// ProgressInterval is the progress reporter tick.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	// MaintainContextWindow toggles cross-chunk context injection.
	MaintainContextWindow bool `mapstructure:"maintain_context_window"`
	// ContextWindowSize is the character budget of the trailing window
	// passed to the translator.
	ContextWindowSize int `mapstructure:"context_window_size"`
	// EnableBackpressure widens the outstanding-work bound by MaxQueueSize;
	// disabled, the bound collapses to MaxConcurrentChunks.
	EnableBackpressure bool `mapstructure:"enable_backpressure"`
	// MaxQueueSize is the extra outstanding work allowed beyond the
	// concurrency limit when backpressure is enabled.
	MaxQueueSize int `mapstructure:"max_queue_size"`
	// PoolSize caps the worker pool independently of MaxConcurrentChunks.
	PoolSize int `mapstructure:"pool_size"`
	// AdaptiveSizing attaches the feedback-driven chunk sizer.
	AdaptiveSizing bool `mapstructure:"adaptive_sizing"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableStreaming:       true,
		MinStreamSize:         100 * 1024,
		ChunkSize:             4096,
		MaxContextLength:      8192,
		MaxConcurrentChunks:   3,
		ChunkTimeout:          30 * time.Second,
		ProgressInterval:      500 * time.Millisecond,
		MaintainContextWindow: true,
		ContextWindowSize:     1024,
		EnableBackpressure:    true,
		MaxQueueSize:          10,
		PoolSize:              4,
		AdaptiveSizing:        false,
	}
}

// outstandingLimit is the combined window for submitted-but-not-yet-collected
// work in parallel mode.
func (c Config) outstandingLimit() int {
	if c.EnableBackpressure {
		return c.MaxConcurrentChunks + c.MaxQueueSize
	}
	return c.MaxConcurrentChunks
}

// workerCount bounds execution concurrency by both the chunk limit and the
// pool size.
func (c Config) workerCount() int {
	n := c.MaxConcurrentChunks
	if c.PoolSize > 0 && c.PoolSize < n {
		n = c.PoolSize
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Package events provides a best-effort observability sink for the streaming
// pipeline. Dispatch never blocks the pipeline on a handler and never lets a
// handler failure propagate back into it.
package events

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Type identifies an event category.
type Type string

const (
	// StreamDecision is emitted when the adaptive sizer changes chunk size.
	StreamDecision Type = "stream_decision"
	// ChunkProcessed is emitted once per completed chunk, success or not.
	ChunkProcessed Type = "chunk_processed"
	// StreamCompleted is emitted once when a stream finishes.
	StreamCompleted Type = "stream_completed"
)

// Event is one notification. Data keys depend on the type:
//
//	StreamDecision:  previous_size, next_size, direction
//	ChunkProcessed:  index, success, duration_ms
//	StreamCompleted: chunks
type Event struct {
	Type   Type
	Source string
	Data   map[string]any
}

// Handler consumes events. Handlers must be fast; slow handlers delay
// other handlers but never the pipeline's workers.
type Handler func(Event)

// Dispatcher fans events out to registered handlers. The zero value is not
// usable; construct with New.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a handler for all events.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Dispatch delivers the event to every handler. A panicking handler is
// recovered and logged; remaining handlers still run.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("event handler panicked", "type", ev.Type, "panic", r)
				}
			}()
			h(ev)
		}()
	}
}

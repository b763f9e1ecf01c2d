package events_test

import (
	"testing"

	"github.com/valpere/pseudotran/internal/events"
)

func TestDispatch_DeliversToAllHandlers(t *testing.T) {
	d := events.New()
	var got []events.Type
	d.Subscribe(func(ev events.Event) { got = append(got, ev.Type) })
	d.Subscribe(func(ev events.Event) { got = append(got, ev.Type) })

	d.Dispatch(events.Event{Type: events.ChunkProcessed})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	d := events.New()
	delivered := false
	d.Subscribe(func(events.Event) { panic("boom") })
	d.Subscribe(func(events.Event) { delivered = true })

	d.Dispatch(events.Event{Type: events.StreamCompleted})

	if !delivered {
		t.Error("handler after panicking handler was not invoked")
	}
}

func TestDispatch_NoHandlers(t *testing.T) {
	d := events.New()
	// Must not panic.
	d.Dispatch(events.Event{Type: events.StreamDecision})
}

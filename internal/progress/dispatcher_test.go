package progress

import (
	"strings"
	"sync"
	"testing"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
	gate   chan struct{}
}

func (s *collectSink) Emit(event Event) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(sink, 16)

	for i := 0; i < 10; i++ {
		d.Emit(Event{Type: TypeProgress, Message: "m"})
	}
	d.Close()

	if sink.count() != 10 {
		t.Errorf("expected 10 delivered events, got %d", sink.count())
	}
}

func TestDispatcher_EmitAfterCloseIsNoop(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(sink, 4)
	d.Close()

	d.Emit(Event{Type: TypeComplete})
	if sink.count() != 0 {
		t.Errorf("expected no deliveries after close, got %d", sink.count())
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sink := &collectSink{gate: make(chan struct{})}
	d := NewDispatcher(sink, 1)

	// The worker blocks on the first event; the buffer holds one more;
	// everything past that is dropped without blocking the caller.
	for i := 0; i < 10; i++ {
		d.Emit(Event{Type: TypeProgress})
	}
	if d.Dropped() == 0 {
		t.Error("expected dropped events with a full buffer")
	}

	close(sink.gate)
	d.Close()
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &collectSink{}
	b := &collectSink{}
	MultiSink{a, b}.Emit(Event{Type: TypeStep})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("expected fan-out to both sinks, got %d/%d", a.count(), b.count())
	}
}

func TestConsoleSink_Formats(t *testing.T) {
	var buf strings.Builder
	sink := NewConsoleSink(&buf)

	sink.Emit(Event{Type: TypeProgress, Percent: 42, Iteration: 2, Stage: 3, Message: "verifying"})
	sink.Emit(Event{Type: TypeError, Message: "boom"})

	out := buf.String()
	if !strings.Contains(out, "verifying") || !strings.Contains(out, "boom") {
		t.Errorf("unexpected output: %q", out)
	}
}

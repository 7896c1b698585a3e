// Package progress delivers pipeline status events to interested sinks.
// Emission is fire and forget: a slow or failing sink never blocks or
// fails the pipeline.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Event types mirror the messages the pipeline publishes while a run
// advances.
const (
	TypeProgress = "progress_update"
	TypeStep     = "step_update"
	TypeError    = "error"
	TypeComplete = "complete"
)

// Event is one pipeline status message.
type Event struct {
	Type      string                 `json:"type"`
	RunID     string                 `json:"run_id"`
	Timestamp time.Time              `json:"timestamp"`
	Stage     int                    `json:"stage,omitempty"`
	Iteration int                    `json:"iteration,omitempty"`
	Percent   float64                `json:"percent,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// Sink receives pipeline events. Implementations must not block for
// long and must tolerate concurrent calls.
type Sink interface {
	Emit(event Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// ConsoleSink writes human-readable progress lines, one per event.
type ConsoleSink struct {
	mu sync.Mutex
	W  io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{W: w}
}

func (s *ConsoleSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch event.Type {
	case TypeProgress:
		fmt.Fprintf(s.W, "[%3.0f%%] iteration %d, stage %d: %s\n", event.Percent, event.Iteration, event.Stage, event.Message)
	case TypeError:
		fmt.Fprintf(s.W, "error: %s\n", event.Message)
	case TypeComplete:
		fmt.Fprintf(s.W, "done: %s\n", event.Message)
	default:
		fmt.Fprintf(s.W, "%s\n", event.Message)
	}
}

// JSONLSink writes events as JSON lines for machine consumers.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

func (s *JSONLSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Encoding errors are swallowed: progress must never fail a run.
	_ = s.enc.Encode(event)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(event Event) {
	for _, s := range m {
		s.Emit(event)
	}
}

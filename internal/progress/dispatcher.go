package progress

import "sync"

// Dispatcher decouples event producers from a possibly slow sink. Emit
// enqueues without blocking; when the buffer is full the event is
// dropped and counted. Close drains the queue before returning.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool

	dropMu  sync.Mutex
	dropped int
}

// NewDispatcher starts a dispatcher with the given buffer size.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		sink:  sink,
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.sink.Emit(event)
	}
}

// Emit implements Sink. It never blocks the caller.
func (d *Dispatcher) Emit(event Event) {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	select {
	case d.queue <- event:
		d.closeMu.Unlock()
	default:
		d.closeMu.Unlock()
		d.dropMu.Lock()
		d.dropped++
		d.dropMu.Unlock()
	}
}

// Dropped reports how many events were discarded because the buffer
// was full.
func (d *Dispatcher) Dropped() int {
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return d.dropped
}

// Close stops accepting events and waits for queued ones to reach the
// sink.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.closeMu.Unlock()
	<-d.done
}

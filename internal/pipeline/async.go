package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"can-mqtt-bridge/internal/models"
)

// Async decouples a slow consumer from the read loop with a bounded FIFO
// queue drained by its own goroutine. Consume never blocks: when the queue
// is full the frame is dropped and counted.
type Async struct {
	name     string
	consumer Consumer
	queue    chan models.DecodedFrame
	done     chan struct{}

	mu     sync.RWMutex
	closed bool

	enqueued  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewAsync starts a queue of the given size in front of consumer
func NewAsync(name string, consumer Consumer, size int) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{
		name:     name,
		consumer: consumer,
		queue:    make(chan models.DecodedFrame, size),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for frame := range a.queue {
		a.consumer.Consume(frame)
		a.delivered.Add(1)
	}
}

// Consume enqueues frame without blocking
func (a *Async) Consume(frame models.DecodedFrame) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Add(1)
		return
	}

	select {
	case a.queue <- frame:
		a.enqueued.Add(1)
	default:
		if a.dropped.Add(1)%1000 == 1 {
			slog.Warn("consumer queue full, dropping frames", "consumer", a.name, "dropped", a.dropped.Load())
		}
	}
}

// Close stops accepting frames and waits for the queue to drain
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
	return nil
}

// Dropped returns the number of frames not queued
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// AsyncStats is a snapshot of an Async queue
type AsyncStats struct {
	Name      string `json:"name"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Enqueued  uint64 `json:"enqueued"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns the queue counters
func (a *Async) Stats() AsyncStats {
	return AsyncStats{
		Name:      a.name,
		Queued:    len(a.queue),
		Capacity:  cap(a.queue),
		Enqueued:  a.enqueued.Load(),
		Delivered: a.delivered.Load(),
		Dropped:   a.dropped.Load(),
	}
}

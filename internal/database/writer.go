// Package database archives decoded frames. The ClickHouse and InfluxDB
// writers share the batching loop in this package.
package database

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"can-mqtt-bridge/internal/models"
)

// Writer defines the interface for database writers
type Writer interface {
	// Start begins processing and writing frames
	Start()

	// Write queues a frame for writing. It never blocks.
	Write(frame models.DecodedFrame)

	// Close flushes pending frames and releases the connection
	Close() error
}

// FlushFunc writes one batch. The slice is reused after it returns.
type FlushFunc func(ctx context.Context, batch []models.DecodedFrame) error

// Batcher collects frames and hands them to a FlushFunc when the batch is
// full or the flush interval elapses.
type Batcher struct {
	name      string
	batchSize int
	interval  time.Duration
	flushFn   FlushFunc
	timeout   time.Duration

	batch     []models.DecodedFrame
	batchChan chan models.DecodedFrame
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once

	// writers hold mu shared, Close takes it to stop new sends
	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewBatcher creates a batcher. Call Start to begin the write loop.
func NewBatcher(name string, batchSize int, interval time.Duration, flush FlushFunc) *Batcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		name:      name,
		batchSize: batchSize,
		interval:  interval,
		flushFn:   flush,
		timeout:   10 * time.Second,
		batch:     make([]models.DecodedFrame, 0, batchSize),
		batchChan: make(chan models.DecodedFrame, batchSize*2),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins the write loop
func (b *Batcher) Start() {
	b.startOnce.Do(func() { go b.writeLoop() })
}

func (b *Batcher) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			// Flush remaining frames before exiting
			b.drain()
			b.flush()
			return

		case frame := <-b.batchChan:
			b.batch = append(b.batch, frame)
			if len(b.batch) >= b.batchSize {
				b.flush()
			}

		case <-ticker.C:
			b.flush()
		}
	}
}

func (b *Batcher) drain() {
	for {
		select {
		case frame := <-b.batchChan:
			b.batch = append(b.batch, frame)
			if len(b.batch) >= b.batchSize {
				b.flush()
			}
		default:
			return
		}
	}
}

func (b *Batcher) flush() {
	if len(b.batch) == 0 {
		return
	}

	// the loop context is already cancelled during the final flush
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.flushFn(ctx, b.batch); err != nil {
		b.failed.Add(uint64(len(b.batch)))
		slog.Error("failed to flush batch", "writer", b.name, "frames", len(b.batch), "error", err)
	} else {
		b.written.Add(uint64(len(b.batch)))
		slog.Debug("flushed batch", "writer", b.name, "frames", len(b.batch))
	}
	b.batch = b.batch[:0]
}

// Write queues a frame, dropping it when the queue is full or closed
func (b *Batcher) Write(frame models.DecodedFrame) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.dropped.Add(1)
		return
	}
	select {
	case b.batchChan <- frame:
	default:
		if b.dropped.Add(1)%1000 == 1 {
			slog.Warn("batch channel full, dropping frames", "writer", b.name, "dropped", b.dropped.Load())
		}
	}
}

// Consume lets the batcher be registered as a pipeline consumer
func (b *Batcher) Consume(frame models.DecodedFrame) {
	b.Write(frame)
}

// Close stops the loop after flushing what was queued. Every frame passed
// to Write is either flushed or counted as dropped.
func (b *Batcher) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.Start()
	b.cancel()
	<-b.done
	return nil
}

// BatchStats is a snapshot of the batcher counters
type BatchStats struct {
	Writer  string `json:"writer"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Stats returns the counters
func (b *Batcher) Stats() BatchStats {
	return BatchStats{
		Writer:  b.name,
		Written: b.written.Load(),
		Dropped: b.dropped.Load(),
		Failed:  b.failed.Load(),
	}
}

// Dropped returns the number of frames not queued
func (b *Batcher) Dropped() uint64 {
	return b.dropped.Load()
}

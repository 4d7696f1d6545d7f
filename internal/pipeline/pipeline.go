// Package pipeline connects a CAN channel to a fixed set of consumers.
//
// A Pipeline owns one frame source and runs a single read loop. Every frame
// read is resolved against the signal database, decoded, and handed to each
// registered consumer synchronously, in registration order, on the reader
// goroutine. Consumers must not block; one that needs its own pacing should
// be wrapped with NewAsync.
//
//	p := pipeline.New(channel, db, "can0")
//	p.Register("display", tui)
//	p.Register("mqtt", pipeline.NewAsync("mqtt", sink, 1024))
//	err := p.Run(ctx)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"can-mqtt-bridge/internal/can"
	"can-mqtt-bridge/internal/dbc"
	"can-mqtt-bridge/internal/models"
)

var (
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("pipeline already started")

	// ErrRunning is returned by Register once Run has been called.
	ErrRunning = errors.New("pipeline is running")
)

// Source yields raw frames. can.Channel satisfies it.
type Source interface {
	Read(ctx context.Context) (models.Frame, error)
}

// Resolver matches a plain identifier to a message definition.
// *dbc.Database satisfies it.
type Resolver interface {
	Resolve(id uint32) dbc.Match
}

// Consumer receives every decoded frame. The frame and its signal map are
// shared with other consumers and must not be modified.
type Consumer interface {
	Consume(frame models.DecodedFrame)
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(frame models.DecodedFrame)

func (f ConsumerFunc) Consume(frame models.DecodedFrame) {
	f(frame)
}

// State of the read loop
type State int32

const (
	StateIdle State = iota
	StateReading
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type registration struct {
	name       string
	consumer   Consumer
	dispatched atomic.Uint64
}

// Pipeline is a single-reader, multi-consumer frame distributor
type Pipeline struct {
	source Source
	db     Resolver
	bus    string

	mu        sync.Mutex
	consumers []*registration
	started   bool

	state        atomic.Int32
	framesRead   atomic.Uint64
	resolved     atomic.Uint64
	unresolved   atomic.Uint64
	emptyDecodes atomic.Uint64
	noFrame      atomic.Uint64
}

// New creates a pipeline reading from source and resolving against db.
// bus names the channel in decoded frames.
func New(source Source, db Resolver, bus string) *Pipeline {
	return &Pipeline{
		source: source,
		db:     db,
		bus:    bus,
	}
}

// Register appends a consumer. Consumers are invoked in registration order.
func (p *Pipeline) Register(name string, consumer Consumer) error {
	if consumer == nil {
		return errors.New("consumer cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrRunning
	}

	p.consumers = append(p.consumers, &registration{name: name, consumer: consumer})
	return nil
}

// Run reads and dispatches frames until the source is closed, the read
// fails, or ctx is cancelled. It returns nil on closure, ctx.Err() on
// cancellation and the read error otherwise. Run may be called once.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	consumers := p.consumers
	p.mu.Unlock()

	defer p.setState(StateStopped)

	slog.Info("pipeline started", "bus", p.bus, "consumers", len(consumers))

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("pipeline cancelled", "bus", p.bus)
			return err
		}

		p.setState(StateReading)
		frame, err := p.source.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, can.ErrNoFrame):
				p.noFrame.Add(1)
				continue
			case errors.Is(err, can.ErrClosed):
				slog.Info("channel closed, pipeline stopping", "bus", p.bus)
				return nil
			case ctx.Err() != nil:
				slog.Info("pipeline cancelled", "bus", p.bus)
				return ctx.Err()
			default:
				return fmt.Errorf("failed to read frame on %s: %w", p.bus, err)
			}
		}
		p.framesRead.Add(1)

		decoded := p.decode(frame)

		p.setState(StateDispatching)
		for _, reg := range consumers {
			reg.consumer.Consume(decoded)
			reg.dispatched.Add(1)
		}
	}
}

func (p *Pipeline) decode(frame models.Frame) models.DecodedFrame {
	plain := frame.PlainID()
	decoded := models.DecodedFrame{
		Frame:    frame,
		Bus:      p.bus,
		PlainID:  plain,
		Received: time.Now(),
	}

	match := p.db.Resolve(plain)
	if match.Message == nil {
		p.unresolved.Add(1)
		return decoded
	}
	p.resolved.Add(1)

	decoded.Name = match.Message.Name
	decoded.Signals = dbc.DecodeMessage(match.Message, frame.Data)
	if len(decoded.Signals) == 0 {
		p.emptyDecodes.Add(1)
	}
	return decoded
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// State returns the current loop state
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// ConsumerStats is the per-consumer breakdown in Stats
type ConsumerStats struct {
	Name       string `json:"name"`
	Dispatched uint64 `json:"dispatched"`
	// Dropped is reported by consumers with their own queue (see Async)
	Dropped uint64 `json:"dropped"`
}

// Stats is a snapshot of the pipeline counters
type Stats struct {
	Bus          string          `json:"bus"`
	State        string          `json:"state"`
	FramesRead   uint64          `json:"frames_read"`
	Resolved     uint64          `json:"resolved"`
	Unresolved   uint64          `json:"unresolved"`
	EmptyDecodes uint64          `json:"empty_decodes"`
	NoFrame      uint64          `json:"no_frame"`
	Consumers    []ConsumerStats `json:"consumers"`
}

type dropCounter interface {
	Dropped() uint64
}

// Stats returns the current counters
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	consumers := p.consumers
	p.mu.Unlock()

	stats := Stats{
		Bus:          p.bus,
		State:        p.State().String(),
		FramesRead:   p.framesRead.Load(),
		Resolved:     p.resolved.Load(),
		Unresolved:   p.unresolved.Load(),
		EmptyDecodes: p.emptyDecodes.Load(),
		NoFrame:      p.noFrame.Load(),
		Consumers:    make([]ConsumerStats, 0, len(consumers)),
	}
	for _, reg := range consumers {
		cs := ConsumerStats{Name: reg.name, Dispatched: reg.dispatched.Load()}
		if dc, ok := reg.consumer.(dropCounter); ok {
			cs.Dropped = dc.Dropped()
		}
		stats.Consumers = append(stats.Consumers, cs)
	}
	return stats
}

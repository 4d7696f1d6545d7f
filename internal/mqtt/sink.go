package mqtt

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"can-mqtt-bridge/internal/models"
)

// Client is the publishing side of Publisher
type Client interface {
	Publish(topic string, payload []byte) error
}

// Sink turns decoded frames into messages on can/{bus}/{id}
type Sink struct {
	client Client

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewSink creates a sink publishing through client
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// Consume publishes one frame. Failures are counted and logged, never returned.
func (s *Sink) Consume(frame models.DecodedFrame) {
	msg := NewMessage(frame)
	payload, err := msg.Marshal()
	if err != nil {
		s.fail(err)
		return
	}

	if err := s.client.Publish(Topic(frame.Bus, frame.PlainID), payload); err != nil {
		s.fail(err)
		return
	}
	s.sent.Add(1)
}

func (s *Sink) fail(err error) {
	n := s.failed.Add(1)
	if errors.Is(err, ErrNotConnected) {
		if n%1000 == 1 {
			slog.Warn("dropping frames while mqtt is disconnected", "failed", n)
		}
		return
	}
	slog.Debug("mqtt publish failed", "error", err)
}

// Sent returns the number of frames published
func (s *Sink) Sent() uint64 {
	return s.sent.Load()
}

// Failed returns the number of frames that could not be published
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

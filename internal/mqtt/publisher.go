// Package mqtt publishes decoded CAN frames to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ErrNotConnected is returned by Publish while the client has no broker connection.
var ErrNotConnected = errors.New("mqtt not connected")

// Options configures the broker connection
type Options struct {
	URI            string
	ClientID       string
	KeepAlive      time.Duration
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Publisher wraps a paho client and keeps per-topic statistics
type Publisher struct {
	opts   Options
	client paho.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewPublisher creates a publisher. Call Connect before publishing.
// An empty ClientID gets a random one so several bridges can share a broker.
func NewPublisher(opts Options) *Publisher {
	if opts.ClientID == "" {
		opts.ClientID = "can-bridge-" + uuid.NewString()[:8]
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	return &Publisher{
		opts:      opts,
		published: make(map[string]uint64),
	}
}

// ClientID returns the identifier presented to the broker
func (p *Publisher) ClientID() string {
	return p.opts.ClientID
}

// Connect establishes the connection to the broker. Reconnection after a
// lost connection is handled by the client.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(p.opts.URI)
	opts.SetClientID(p.opts.ClientID)
	opts.SetCleanSession(true)
	if p.opts.KeepAlive > 0 {
		opts.SetKeepAlive(p.opts.KeepAlive)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(p.opts.ConnectTimeout)

	opts.OnConnect = func(c paho.Client) {
		p.setConnected(true)
		slog.Info("mqtt connection established", "broker", p.opts.URI, "client_id", p.opts.ClientID)
	}

	opts.OnConnectionLost = func(c paho.Client, err error) {
		p.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", p.opts.URI)
	}

	client := paho.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", p.opts.URI)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(p.opts.ConnectTimeout):
		return fmt.Errorf("mqtt connection to %s timed out", p.opts.URI)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", p.opts.URI, err)
	}

	p.mu.Lock()
	p.client = client
	p.connected = true
	p.mu.Unlock()

	return nil
}

// Publish sends payload to topic with the configured QoS, not retained
func (p *Publisher) Publish(topic string, payload []byte) error {
	p.mu.RLock()
	client, connected := p.client, p.connected
	p.mu.RUnlock()

	if client == nil || !connected {
		p.countError()
		return ErrNotConnected
	}

	token := client.Publish(topic, p.opts.QoS, false, payload)
	if !token.WaitTimeout(p.opts.PublishTimeout) {
		p.countError()
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()

	return nil
}

// Disconnect closes the broker connection
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.connected = false
	p.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Stats returns a copy of the counters
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.connected,
		Published: published,
		Errors:    p.errors,
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

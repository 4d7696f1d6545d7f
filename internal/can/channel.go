package can

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"can-mqtt-bridge/internal/models"
)

var (
	// ErrUnsupportedBackend is returned by NewChannel for unknown backends
	// and for backends not available on this platform.
	ErrUnsupportedBackend = errors.New("unsupported CAN backend")

	// ErrNoFrame means a read produced no frame this time (timeout, short
	// read, empty driver queue). Callers should read again.
	ErrNoFrame = errors.New("no frame available")

	// ErrClosed is returned by Read once the channel has been closed.
	ErrClosed = errors.New("channel closed")

	// ErrNotOpen is returned by Read before Open succeeded.
	ErrNotOpen = errors.New("channel not open")

	// ErrAlreadyOpen is returned by Open on an already open channel.
	ErrAlreadyOpen = errors.New("channel already open")
)

// Channel is a source of raw CAN frames
type Channel interface {
	// Open binds the channel to the named interface or device
	Open(name string) error

	// Read blocks until a frame arrives. The frame identifier is the raw
	// value as seen on the wire, extended flag included.
	Read(ctx context.Context) (models.Frame, error)

	// Close releases the interface. Subsequent reads return ErrClosed.
	Close() error
}

// Options configures a backend
type Options struct {
	// Bitrate is used by backends that configure the controller themselves (PCAN)
	Bitrate string
	// FD enables CAN FD frames where the backend supports it
	FD bool
	// Filters are identifiers accepted by the kernel filter; empty means all
	Filters []uint32
	// ReadTimeout bounds a single blocking read so cancellation is noticed
	ReadTimeout time.Duration
}

// OpenError reports a failure to open a channel
type OpenError struct {
	Backend string
	Channel string
	Err     error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open %s channel %q: %v", e.Backend, e.Channel, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// NewChannel creates the backend selected by name
func NewChannel(backend string, opts Options) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "socketcan", "vcan", "virtual":
		return newSocketCAN(opts)
	case "pcan":
		return newPCAN(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}

// Backends lists the names NewChannel understands
func Backends() []string {
	return []string{"socketcan", "vcan", "virtual", "pcan"}
}

// CloseOnDone closes ch once ctx is done so a pending Read returns
// ErrClosed. The returned function cancels the registration.
func CloseOnDone(ctx context.Context, ch Channel) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		if err := ch.Close(); err != nil {
			slog.Warn("failed to close CAN channel", "error", err)
		}
	})
}

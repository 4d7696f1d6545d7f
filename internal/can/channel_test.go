package can

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"can-mqtt-bridge/internal/models"
)

// blockingChannel blocks in Read until Close is called
type blockingChannel struct {
	closed chan struct{}
	closes atomic.Int32
}

func newBlockingChannel() *blockingChannel {
	return &blockingChannel{closed: make(chan struct{})}
}

func (c *blockingChannel) Open(string) error { return nil }

func (c *blockingChannel) Read(context.Context) (models.Frame, error) {
	<-c.closed
	return models.Frame{}, ErrClosed
}

func (c *blockingChannel) Close() error {
	if c.closes.Add(1) == 1 {
		close(c.closed)
	}
	return nil
}

func TestNewChannelUnknownBackend(t *testing.T) {
	for _, backend := range []string{"", "kvaser", "slcan"} {
		ch, err := NewChannel(backend, Options{})
		if !errors.Is(err, ErrUnsupportedBackend) {
			t.Errorf("%q: expected ErrUnsupportedBackend, got %v", backend, err)
		}
		if ch != nil {
			t.Errorf("%q: expected nil channel", backend)
		}
	}
}

func TestNewChannelPlatform(t *testing.T) {
	_, err := NewChannel("PCAN", Options{})
	if runtime.GOOS != "windows" && !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("Expected pcan to be unsupported on %s, got %v", runtime.GOOS, err)
	}

	_, err = NewChannel(" SocketCAN ", Options{})
	if runtime.GOOS == "linux" && err != nil {
		t.Errorf("Expected socketcan to be available on linux, got %v", err)
	}
	if runtime.GOOS != "linux" && !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("Expected socketcan to be unsupported on %s, got %v", runtime.GOOS, err)
	}
}

func TestOpenErrorUnwrap(t *testing.T) {
	err := error(&OpenError{Backend: "socketcan", Channel: "can9", Err: ErrAlreadyOpen})

	if !errors.Is(err, ErrAlreadyOpen) {
		t.Error("Expected OpenError to unwrap to its cause")
	}

	var openErr *OpenError
	if !errors.As(err, &openErr) || openErr.Channel != "can9" {
		t.Errorf("Expected errors.As to find channel can9, got %v", openErr)
	}

	expected := `failed to open socketcan channel "can9": channel already open`
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestCloseOnDone(t *testing.T) {
	ch := newBlockingChannel()
	ctx, cancel := context.WithCancel(context.Background())
	CloseOnDone(ctx, ch)

	result := make(chan error, 1)
	go func() {
		_, err := ch.Read(context.Background())
		result <- err
	}()

	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read was not unblocked by cancellation")
	}

	// the deferred Close in callers must stay harmless
	if err := ch.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
}

func TestCloseOnDoneStopped(t *testing.T) {
	ch := newBlockingChannel()
	ctx, cancel := context.WithCancel(context.Background())
	stop := CloseOnDone(ctx, ch)

	if !stop() {
		t.Error("Expected stop to cancel the pending close")
	}
	cancel()
	time.Sleep(20 * time.Millisecond)

	if n := ch.closes.Load(); n != 0 {
		t.Errorf("Expected no close after stop, got %d", n)
	}
}

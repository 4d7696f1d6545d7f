package can

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"can-mqtt-bridge/internal/models"

	"golang.org/x/sys/unix"
)

// defaultReadTimeout bounds reads when none is configured. Close waits for
// an in-flight read, so reads must never block indefinitely.
const defaultReadTimeout = 200 * time.Millisecond

// SocketCAN reads raw frames from a Linux CAN network interface
type SocketCAN struct {
	opts Options

	// readers hold mu shared for the whole read, Close takes it exclusively
	mu     sync.RWMutex
	socket int
	ifname string
	closed bool
}

func newSocketCAN(opts Options) (Channel, error) {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	return &SocketCAN{opts: opts, socket: -1}, nil
}

// Open creates a raw CAN socket and binds it to ifname
func (s *SocketCAN) Open(ifname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.socket != -1 {
		return &OpenError{Backend: "socketcan", Channel: ifname, Err: ErrAlreadyOpen}
	}

	socket, err := openSocket(ifname, s.opts)
	if err != nil {
		return &OpenError{Backend: "socketcan", Channel: ifname, Err: err}
	}

	s.socket = socket
	s.ifname = ifname
	s.closed = false
	return nil
}

func openSocket(ifname string, opts Options) (int, error) {
	socket, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return -1, fmt.Errorf("failed to create CAN socket: %w", err)
	}

	fail := func(err error) (int, error) {
		unix.Close(socket)
		return -1, err
	}

	ifreq, err := unix.NewIfreq(ifname)
	if err != nil {
		return fail(fmt.Errorf("failed to create ifreq: %w", err))
	}

	if err := unix.IoctlIfreq(socket, unix.SIOCGIFINDEX, ifreq); err != nil {
		return fail(fmt.Errorf("failed to get interface index: %w", err))
	}

	if opts.FD {
		if err := unix.SetsockoptInt(socket, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
			return fail(fmt.Errorf("failed to enable CAN FD frames: %w", err))
		}
	}

	if len(opts.Filters) > 0 {
		if err := unix.SetsockoptCanRawFilter(socket, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, kernelFilters(opts.Filters)); err != nil {
			return fail(fmt.Errorf("failed to set filter: %w", err))
		}
	}

	if opts.ReadTimeout > 0 {
		tv := unix.NsecToTimeval(opts.ReadTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(socket, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			return fail(fmt.Errorf("failed to set read timeout: %w", err))
		}
	}

	addr := &unix.SockaddrCAN{
		Ifindex: int(ifreq.Uint32()),
	}
	if err := unix.Bind(socket, addr); err != nil {
		return fail(fmt.Errorf("failed to bind socket: %w", err))
	}

	return socket, nil
}

// kernelFilters turns identifiers into exact-match CAN_RAW_FILTER entries.
// Identifiers above the 11-bit range are matched as extended frames.
func kernelFilters(ids []uint32) []unix.CanFilter {
	filters := make([]unix.CanFilter, 0, len(ids))
	for _, id := range ids {
		f := unix.CanFilter{
			Id:   id & models.CANSffMask,
			Mask: models.CANEffFlag | models.CANRtrFlag | models.CANSffMask,
		}
		if id > models.CANSffMask || id&models.CANEffFlag != 0 {
			f.Id = (id & models.CANEffMask) | models.CANEffFlag
			f.Mask = models.CANEffFlag | models.CANRtrFlag | models.CANEffMask
		}
		filters = append(filters, f)
	}
	return filters
}

// Read blocks for one frame or until the socket read timeout expires
func (s *SocketCAN) Read(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	// the descriptor stays valid until the read returns
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return models.Frame{}, ErrClosed
	}
	if s.socket == -1 {
		return models.Frame{}, ErrNotOpen
	}

	buf := make([]byte, fdFrameSize)
	n, err := unix.Read(s.socket, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return models.Frame{}, ErrNoFrame
		}
		if errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENETDOWN) || errors.Is(err, unix.ENODEV) {
			return models.Frame{}, fmt.Errorf("%w: %w", ErrClosed, err)
		}
		return models.Frame{}, fmt.Errorf("read error: %w", err)
	}

	return decodeRawFrame(buf[:n], models.Monotonic())
}

// Close closes the CAN socket. It waits for a read in progress, at most
// one read timeout.
func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.socket == -1 {
		s.closed = true
		return nil
	}

	s.closed = true
	err := unix.Close(s.socket)
	s.socket = -1
	return err
}

//go:build windows

package can

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"can-mqtt-bridge/internal/models"

	"golang.org/x/sys/windows"
)

const (
	pcanErrorOK         = 0x00000
	pcanErrorQRcvEmpty  = 0x00020
	pcanMessageRTR      = 0x01
	pcanMessageExtended = 0x02
	pcanMessageStatus   = 0x80
	pcanEmptyQueuePause = 2 * time.Millisecond
)

// pcanMsg mirrors TPCANMsg
type pcanMsg struct {
	ID      uint32
	MsgType uint8
	Len     uint8
	Data    [8]byte
}

// pcanTimestamp mirrors TPCANTimestamp
type pcanTimestamp struct {
	Millis         uint32
	MillisOverflow uint16
	Micros         uint16
}

// PCAN reads frames through the PEAK PCAN-Basic driver
type PCAN struct {
	opts Options

	mu         sync.Mutex
	dll        *windows.LazyDLL
	initialize *windows.LazyProc
	uninit     *windows.LazyProc
	read       *windows.LazyProc
	handle     uint16
	open       bool
	closed     bool
}

func newPCAN(opts Options) (Channel, error) {
	return &PCAN{opts: opts}, nil
}

func (p *PCAN) loadLibrary() error {
	if p.dll != nil {
		return nil
	}

	dll := windows.NewLazyDLL("PCANBasic.dll")
	if err := dll.Load(); err != nil {
		return fmt.Errorf("failed to load PCANBasic.dll: %w", err)
	}

	p.initialize = dll.NewProc("CAN_Initialize")
	p.uninit = dll.NewProc("CAN_Uninitialize")
	p.read = dll.NewProc("CAN_Read")
	for _, proc := range []*windows.LazyProc{p.initialize, p.uninit, p.read} {
		if err := proc.Find(); err != nil {
			return fmt.Errorf("PCANBasic.dll is missing %s: %w", proc.Name, err)
		}
	}

	p.dll = dll
	return nil
}

// Open initializes the PCAN channel, e.g. PCAN_USBBUS1
func (p *PCAN) Open(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return &OpenError{Backend: "pcan", Channel: name, Err: ErrAlreadyOpen}
	}
	if err := p.loadLibrary(); err != nil {
		return &OpenError{Backend: "pcan", Channel: name, Err: err}
	}

	handle, err := pcanHandle(name)
	if err != nil {
		return &OpenError{Backend: "pcan", Channel: name, Err: err}
	}

	status, _, _ := p.initialize.Call(uintptr(handle), uintptr(pcanBitrate(p.opts.Bitrate)), 0, 0, 0)
	if status != pcanErrorOK {
		return &OpenError{Backend: "pcan", Channel: name, Err: fmt.Errorf("CAN_Initialize failed with status 0x%X (bitrate %s)", status, p.opts.Bitrate)}
	}

	p.handle = handle
	p.open = true
	p.closed = false
	slog.Info("pcan channel opened", "channel", name, "bitrate", p.opts.Bitrate)
	return nil
}

// Read polls the driver receive queue once
func (p *PCAN) Read(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	p.mu.Lock()
	open, closed, handle := p.open, p.closed, p.handle
	p.mu.Unlock()

	if closed {
		return models.Frame{}, ErrClosed
	}
	if !open {
		return models.Frame{}, ErrNotOpen
	}

	var msg pcanMsg
	var ts pcanTimestamp
	status, _, _ := p.read.Call(uintptr(handle), uintptr(unsafe.Pointer(&msg)), uintptr(unsafe.Pointer(&ts)))
	if status != pcanErrorOK {
		if status != pcanErrorQRcvEmpty {
			slog.Debug("pcan read status", "status", fmt.Sprintf("0x%X", status))
		}
		time.Sleep(pcanEmptyQueuePause)
		return models.Frame{}, ErrNoFrame
	}
	if msg.MsgType&pcanMessageStatus != 0 {
		return models.Frame{}, ErrNoFrame
	}

	id := msg.ID
	if msg.MsgType&pcanMessageExtended != 0 {
		id |= models.CANEffFlag
	}
	if msg.MsgType&pcanMessageRTR != 0 {
		id |= models.CANRtrFlag
	}

	length := int(msg.Len)
	if length > models.MaxClassicDataLength {
		length = models.MaxClassicDataLength
	}
	data := make([]byte, length)
	copy(data, msg.Data[:length])

	return models.Frame{
		ID:        id,
		Data:      data,
		Timestamp: models.Monotonic().Truncate(time.Microsecond),
	}, nil
}

// Close uninitializes the channel
func (p *PCAN) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.open {
		p.uninit.Call(uintptr(p.handle))
		p.open = false
		slog.Info("pcan channel closed")
	}
	return nil
}

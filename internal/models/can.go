package models

import (
	"fmt"
	"time"
)

// Identifier flags and masks as carried in a raw SocketCAN can_id.
const (
	CANEffFlag uint32 = 0x80000000 // extended frame format
	CANRtrFlag uint32 = 0x40000000 // remote transmission request
	CANErrFlag uint32 = 0x20000000 // error frame
	CANSffMask uint32 = 0x000007FF // 11-bit standard identifier
	CANEffMask uint32 = 0x1FFFFFFF // 29-bit extended identifier

	MaxClassicDataLength = 8
	MaxFDDataLength      = 64
)

var monotonicBase = time.Now()

// Monotonic returns the time elapsed since process start, read from the
// monotonic clock.
func Monotonic() time.Duration {
	return time.Since(monotonicBase)
}

// Frame represents a single CAN frame as produced by a transport
type Frame struct {
	// ID is the raw identifier; it may still carry CANEffFlag and the other flag bits
	ID   uint32
	Data []byte
	// Timestamp is monotonic time since process start, microsecond resolution
	Timestamp time.Duration
}

// IsExtended reports whether the frame is tagged as 29-bit extended format
func (f Frame) IsExtended() bool {
	return f.ID&CANEffFlag != 0
}

// PlainID returns the identifier with format flags removed
func (f Frame) PlainID() uint32 {
	return PlainID(f.ID)
}

// DLC returns the payload byte count
func (f Frame) DLC() int {
	return len(f.Data)
}

// PlainID normalizes a raw identifier: 29 bits when the extended flag is
// set, 11 bits otherwise.
func PlainID(raw uint32) uint32 {
	if raw&CANEffFlag != 0 {
		return raw & CANEffMask
	}
	return raw & CANSffMask
}

// SignalValues maps signal names to physical values
type SignalValues map[string]float64

// DecodedFrame is a frame after identifier resolution and signal decoding.
// It is never mutated once built, so sinks may keep it.
type DecodedFrame struct {
	Frame    Frame
	Bus      string
	PlainID  uint32
	Name     string
	Signals  SignalValues
	Received time.Time
}

// Resolved reports whether a database message matched the frame
func (d DecodedFrame) Resolved() bool {
	return d.Name != ""
}

// IDHex formats the plain identifier the way operators read it
func (d DecodedFrame) IDHex() string {
	if d.Frame.IsExtended() {
		return fmt.Sprintf("0x%08X", d.PlainID)
	}
	return fmt.Sprintf("0x%03X", d.PlainID)
}

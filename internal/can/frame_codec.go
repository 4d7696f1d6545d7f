package can

import (
	"encoding/binary"
	"fmt"
	"time"

	"can-mqtt-bridge/internal/models"
)

const (
	classicFrameSize = 16 // struct can_frame
	fdFrameSize      = 72 // struct canfd_frame
	frameHeaderSize  = 8
)

// decodeRawFrame parses a struct can_frame or struct canfd_frame read from
// a raw socket. Any other length is a short read.
func decodeRawFrame(buf []byte, ts time.Duration) (models.Frame, error) {
	maxLen := 0
	switch len(buf) {
	case classicFrameSize:
		maxLen = models.MaxClassicDataLength
	case fdFrameSize:
		maxLen = models.MaxFDDataLength
	default:
		return models.Frame{}, fmt.Errorf("%w: incomplete CAN frame received: %d bytes", ErrNoFrame, len(buf))
	}

	length := int(buf[4])
	if length > maxLen {
		length = maxLen
	}

	data := make([]byte, length)
	copy(data, buf[frameHeaderSize:frameHeaderSize+length])

	return models.Frame{
		ID:        binary.LittleEndian.Uint32(buf[0:4]),
		Data:      data,
		Timestamp: ts.Truncate(time.Microsecond),
	}, nil
}

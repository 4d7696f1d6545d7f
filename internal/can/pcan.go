package can

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PCAN-Basic BTR0BTR1 bit timing codes
var pcanBitrates = map[string]uint16{
	"1M":    0x0014,
	"1000K": 0x0014,
	"800K":  0x0016,
	"500K":  0x001C,
	"250K":  0x011C,
	"125K":  0x031C,
	"100K":  0x432F,
	"50K":   0x472F,
	"20K":   0x672F,
	"10K":   0x7F7F,
}

const pcanDefaultBitrate uint16 = 0x031C // 125K

var pcanUSBChannel = regexp.MustCompile(`^PCAN_USBBUS([0-9]+)$`)

// pcanBitrate maps a bitrate string such as "500K" to its BTR0BTR1 code.
// Unknown strings fall back to 125K.
func pcanBitrate(s string) uint16 {
	if code, ok := pcanBitrates[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return code
	}
	return pcanDefaultBitrate
}

// pcanHandle maps a channel name like PCAN_USBBUS1 to its PCAN-Basic handle
func pcanHandle(name string) (uint16, error) {
	m := pcanUSBChannel.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, fmt.Errorf("unrecognized PCAN channel %q (expected PCAN_USBBUSn)", name)
	}

	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 1 || idx > 16 {
		return 0, fmt.Errorf("PCAN channel index out of range in %q", name)
	}
	return uint16(0x50 + idx), nil
}

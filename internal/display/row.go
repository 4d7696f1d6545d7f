// Package display renders decoded frames as a scrolling terminal table.
package display

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"can-mqtt-bridge/internal/models"
)

// Row is one formatted line of the frame table
type Row struct {
	TS      string `json:"ts"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	DLC     int    `json:"dlc"`
	Signals string `json:"signals"`
}

// NewRow formats a decoded frame for display
func NewRow(frame models.DecodedFrame) Row {
	return Row{
		TS:      formatTimestamp(frame.Frame.Timestamp),
		ID:      frame.IDHex(),
		Name:    ToASCII(frame.Name),
		DLC:     frame.Frame.DLC(),
		Signals: ToASCII(formatSignals(frame.Signals)),
	}
}

// seconds.millis
func formatTimestamp(ts time.Duration) string {
	return fmt.Sprintf("%d.%03d", ts/time.Second, (ts%time.Second)/time.Millisecond)
}

// formatSignals renders Name=value pairs sorted by name
func formatSignals(values models.SignalValues) string {
	if len(values) == 0 {
		return ""
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.2f", name, values[name])
	}
	return strings.Join(parts, " ")
}

// ToASCII replaces ° with "deg", … with "..." and any other non-ASCII rune with '?'
func ToASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '°':
			b.WriteString("deg")
		case r == '…':
			b.WriteString("...")
		case r < 0x80:
			b.WriteRune(r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}

package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"can-mqtt-bridge/internal/models"
)

// Message is the JSON document published for each frame
type Message struct {
	TS      int64               `json:"ts"` // capture time, microseconds
	Bus     string              `json:"bus"`
	ID      uint32              `json:"id"`
	DLC     int                 `json:"dlc"`
	Raw     string              `json:"raw"`
	Name    string              `json:"name"`
	Signals models.SignalValues `json:"signals,omitempty"`
}

// NewMessage builds the document for a decoded frame
func NewMessage(frame models.DecodedFrame) Message {
	return Message{
		TS:      frame.Frame.Timestamp.Microseconds(),
		Bus:     frame.Bus,
		ID:      frame.PlainID,
		DLC:     frame.Frame.DLC(),
		Raw:     FormatRaw(frame.Frame.Data),
		Name:    frame.Name,
		Signals: frame.Signals,
	}
}

// Marshal encodes the message as JSON
func (m Message) Marshal() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return payload, nil
}

// Topic returns can/{bus}/{id} with the plain identifier as six hex digits
func Topic(bus string, plainID uint32) string {
	return fmt.Sprintf("can/%s/%06X", bus, plainID)
}

// FormatRaw renders bytes as uppercase hex pairs separated by single spaces
func FormatRaw(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(data)*3 - 1)
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

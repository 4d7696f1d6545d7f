package display

import (
	"testing"
	"time"

	"can-mqtt-bridge/internal/models"
)

func TestNewRow(t *testing.T) {
	frame := models.DecodedFrame{
		Frame:   models.Frame{ID: 0x98FEEF00, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Timestamp: 12*time.Second + 345*time.Millisecond + 999*time.Microsecond},
		PlainID: 0x18FEEF00,
		Name:    "AMB_FMS",
		Signals: models.SignalValues{"Ambient": 25.2, "Cab": -1.005, "Battery": 13},
	}

	row := NewRow(frame)
	if row.TS != "12.345" {
		t.Errorf("Expected ts 12.345, got %q", row.TS)
	}
	if row.ID != "0x18FEEF00" {
		t.Errorf("Expected id 0x18FEEF00, got %q", row.ID)
	}
	if row.Name != "AMB_FMS" || row.DLC != 8 {
		t.Errorf("Unexpected name/dlc: %q %d", row.Name, row.DLC)
	}
	expected := "Ambient=25.20 Battery=13.00 Cab=-1.00"
	if row.Signals != expected {
		t.Errorf("Expected %q, got %q", expected, row.Signals)
	}
}

func TestNewRowStandardID(t *testing.T) {
	row := NewRow(models.DecodedFrame{Frame: models.Frame{ID: 0x7DF, Data: []byte{2}}, PlainID: 0x7DF})
	if row.ID != "0x7DF" {
		t.Errorf("Expected id 0x7DF, got %q", row.ID)
	}
	if row.TS != "0.000" {
		t.Errorf("Expected ts 0.000, got %q", row.TS)
	}
	if row.Name != "" || row.Signals != "" {
		t.Errorf("Expected empty name and signals, got %q %q", row.Name, row.Signals)
	}
}

func TestToASCII(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"Temp=21.50°C", "Temp=21.50degC"},
		{"wait…", "wait..."},
		{"Größe", "Gr??e"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ToASCII(tt.in); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

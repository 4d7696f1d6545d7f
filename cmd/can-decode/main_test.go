package main

import (
	"testing"

	"can-mqtt-bridge/internal/dbc"
	"can-mqtt-bridge/internal/models"
)

const testDBC = `VERSION ""

BU_: ECU

BO_ 2566844672 EEC1: 8 ECU
 SG_ EngineSpeed : 24|16@1+ (0.125,0) [0|8031.875] "rpm" ECU
`

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		data    string
		ext     bool
		wantID  uint32
		wantLen int
		wantErr bool
	}{
		{"standard hex", "0x123", "01 02", false, 0x123, 2, false},
		{"standard forced extended", "0x123", "", true, 0x123 | models.CANEffFlag, 0, false},
		{"large id is extended", "0x18FEF105", "0011223344556677", false, 0x18FEF105 | models.CANEffFlag, 8, false},
		{"decimal", "291", "ff", false, 291, 1, false},
		{"too wide", "0x20000000", "", false, 0, 0, true},
		{"bad id", "xyz", "", false, 0, 0, true},
		{"odd data", "0x1", "123", false, 0, 0, true},
		{"bad data", "0x1", "zz", false, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := parseFrame(tt.id, tt.data, tt.ext)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got frame %+v", frame)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFrame failed: %v", err)
			}
			if frame.ID != tt.wantID {
				t.Errorf("Expected id 0x%X, got 0x%X", tt.wantID, frame.ID)
			}
			if len(frame.Data) != tt.wantLen {
				t.Errorf("Expected %d bytes, got %d", tt.wantLen, len(frame.Data))
			}
		})
	}
}

func TestDecode(t *testing.T) {
	db, err := dbc.Parse("test.dbc", []byte(testDBC))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// different source address than the declared 0x18FEF100
	frame, err := parseFrame("0x18FEF105", "00 00 00 40 1F 00 00 00", false)
	if err != nil {
		t.Fatalf("parseFrame failed: %v", err)
	}

	decoded, tier := decode(db, frame, "offline")
	if decoded.Name != "EEC1" {
		t.Fatalf("Expected EEC1, got %q", decoded.Name)
	}
	if tier != dbc.TierSourceAddress {
		t.Errorf("Expected source address tier, got %v", tier)
	}
	if got := decoded.Signals["EngineSpeed"]; got != 1000 {
		t.Errorf("Expected EngineSpeed 1000, got %f", got)
	}

	unknown, _ := parseFrame("0x7DF", "02 01 0C", false)
	decoded, tier = decode(db, unknown, "offline")
	if decoded.Resolved() || tier != dbc.TierNone {
		t.Errorf("Expected no match for 0x7DF, got %q (%v)", decoded.Name, tier)
	}
}

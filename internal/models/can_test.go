package models

import "testing"

func TestPlainID(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want uint32
	}{
		{"extended flag stripped", 0x98FEF100, 0x18FEF100},
		{"extended keeps 29 bits", CANEffFlag | 0x1FFFFFFF, 0x1FFFFFFF},
		{"standard masked to 11 bits", 0x00000123, 0x123},
		{"standard with rtr flag", CANRtrFlag | 0x7FF, 0x7FF},
		{"standard drops stray high bits", 0x18FEF100, 0x100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainID(tt.raw); got != tt.want {
				t.Errorf("PlainID(0x%X) = 0x%X, want 0x%X", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodedFrameIDHex(t *testing.T) {
	ext := DecodedFrame{Frame: Frame{ID: 0x98FEF100}, PlainID: 0x18FEF100}
	if got := ext.IDHex(); got != "0x18FEF100" {
		t.Errorf("Expected 0x18FEF100, got %s", got)
	}

	std := DecodedFrame{Frame: Frame{ID: 0x123}, PlainID: 0x123}
	if got := std.IDHex(); got != "0x123" {
		t.Errorf("Expected 0x123, got %s", got)
	}
}

package can

import "testing"

func TestPCANBitrate(t *testing.T) {
	tests := []struct {
		in       string
		expected uint16
	}{
		{"1M", 0x0014},
		{"800K", 0x0016},
		{"500K", 0x001C},
		{"500k", 0x001C},
		{"250K", 0x011C},
		{"125K", 0x031C},
		{"100K", 0x432F},
		{"50K", 0x472F},
		{"20K", 0x672F},
		{"10K", 0x7F7F},
		{"", 0x031C},
		{"42K", 0x031C},
	}

	for _, tt := range tests {
		if got := pcanBitrate(tt.in); got != tt.expected {
			t.Errorf("pcanBitrate(%q): expected 0x%04X, got 0x%04X", tt.in, tt.expected, got)
		}
	}
}

func TestPCANHandle(t *testing.T) {
	tests := []struct {
		name     string
		expected uint16
		wantErr  bool
	}{
		{"PCAN_USBBUS1", 0x51, false},
		{"PCAN_USBBUS8", 0x58, false},
		{"PCAN_USBBUS16", 0x60, false},
		{"PCAN_USBBUS0", 0, true},
		{"PCAN_PCIBUS1", 0, true},
		{"can0", 0, true},
	}

	for _, tt := range tests {
		got, err := pcanHandle(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got handle 0x%X", tt.name, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("%s: expected 0x%X, got 0x%X", tt.name, tt.expected, got)
		}
	}
}

package dbc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func loadTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := Load(filepath.Join("testdata", "vehicle.dbc"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return db
}

func TestLoad(t *testing.T) {
	db := loadTestDatabase(t)

	if db.Len() != 5 {
		t.Fatalf("Expected 5 messages, got %d", db.Len())
	}

	wantOrder := []string{"EEC1", "EEC1_ALT", "MUXMSG", "BEMSG", "NOSIG"}
	for i, msg := range db.Messages() {
		if msg.Name != wantOrder[i] {
			t.Errorf("Message %d: expected %s, got %s", i, wantOrder[i], msg.Name)
		}
	}

	eec1 := db.Messages()[0]
	if eec1.ID != 0x18FEF100 {
		t.Errorf("Expected plain id 0x18FEF100, got 0x%X", eec1.ID)
	}
	if !eec1.Extended {
		t.Error("Expected EEC1 to be extended")
	}

	mux := db.Messages()[2]
	sw, ok := mux.Switch()
	if !ok || sw.Name != "Mux" {
		t.Fatalf("Expected switch signal Mux, got %+v (ok=%v)", sw, ok)
	}
	if mux.Signals[1].Mux != MuxValue || mux.Signals[1].MuxSwitchValue != 1 {
		t.Errorf("Expected SigA to be multiplexed on 1, got %v/%d", mux.Signals[1].Mux, mux.Signals[1].MuxSwitchValue)
	}
	if mux.Signals[3].Mux != MuxNone {
		t.Errorf("Expected Always to be unmultiplexed, got %v", mux.Signals[3].Mux)
	}
}

func TestLoadUnreadable(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.dbc"))
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable, got %v", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dbc")
	if err := os.WriteFile(path, []byte("BO_ notanumber BROKEN: 8 ECU\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := Load(path)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
	if db != nil {
		t.Error("Expected no database on failure")
	}
}

func TestParseRejectsSecondSwitch(t *testing.T) {
	src := `VERSION ""

BU_: ECU

BO_ 100 TWOMUX: 8 ECU
 SG_ MuxA M : 0|8@1+ (1,0) [0|255] "" ECU
 SG_ MuxB M : 8|8@1+ (1,0) [0|255] "" ECU
`
	_, err := Parse("twomux.dbc", []byte(src))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestFitsWorkingBuffer(t *testing.T) {
	tests := []struct {
		name      string
		start     uint64
		length    uint64
		bigEndian bool
		want      bool
	}{
		{"little full payload", 0, 64, false, true},
		{"little last byte", 56, 8, false, true},
		{"little past end", 60, 8, false, false},
		{"zero length", 0, 0, false, false},
		{"start out of range", 64, 1, false, false},
		{"big first word", 7, 16, true, true},
		{"big full payload", 7, 64, true, true},
		{"big past end", 63, 16, true, false},
		{"big last byte", 63, 8, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fitsWorkingBuffer(tt.start, tt.length, tt.bigEndian); got != tt.want {
				t.Errorf("fitsWorkingBuffer(%d, %d, %v) = %v, want %v", tt.start, tt.length, tt.bigEndian, got, tt.want)
			}
		})
	}
}

func TestDatabaseDecode(t *testing.T) {
	db := loadTestDatabase(t)

	values, ok := db.Decode(0x18FEF100, []byte{0x03, 0, 0, 0x40, 0x1F, 0, 0, 0})
	if !ok {
		t.Fatal("Expected decode to succeed")
	}
	if values["EngineSpeed"] != 1000 {
		t.Errorf("Expected EngineSpeed 1000, got %v", values["EngineSpeed"])
	}
	if values["EngineTorqueMode"] != 3 {
		t.Errorf("Expected EngineTorqueMode 3, got %v", values["EngineTorqueMode"])
	}

	if _, ok := db.Decode(0x7FF, []byte{1, 2, 3}); ok {
		t.Error("Expected unresolved identifier to report ok=false")
	}

	values, ok = db.Decode(0x500, []byte{1, 2, 3})
	if ok || len(values) != 0 {
		t.Errorf("Expected empty decode for NOSIG, got %v (ok=%v)", values, ok)
	}
}

func TestMessageName(t *testing.T) {
	db := loadTestDatabase(t)

	if got := db.MessageName(0x18FEF100); got != "EEC1" {
		t.Errorf("Expected EEC1, got %q", got)
	}
	if got := db.MessageName(0x123); got != "" {
		t.Errorf("Expected empty name, got %q", got)
	}
}

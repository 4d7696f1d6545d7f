package display

import (
	"strings"
	"testing"

	"atomicgo.dev/keyboard/keys"

	"can-mqtt-bridge/internal/models"
)

func TestActionFor(t *testing.T) {
	tests := []struct {
		name     string
		key      keys.Key
		expected action
	}{
		{"up", keys.Key{Code: keys.Up}, actionScrollUp},
		{"down", keys.Key{Code: keys.Down}, actionScrollDown},
		{"ctrl+c", keys.Key{Code: keys.CtrlC}, actionQuit},
		{"q", keys.Key{Code: keys.RuneKey, Runes: []rune{'q'}}, actionQuit},
		{"Q", keys.Key{Code: keys.RuneKey, Runes: []rune{'Q'}}, actionQuit},
		{"x", keys.Key{Code: keys.RuneKey, Runes: []rune{'x'}}, actionNone},
		{"enter", keys.Key{Code: keys.Enter}, actionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actionFor(tt.key); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func newTestTUI(height int) *TUI {
	tui := NewTUI(NewRowBuffer(100))
	tui.height = func() int { return height }
	return tui
}

func TestPollInput(t *testing.T) {
	tui := newTestTUI(chromeLines + 4)
	for i := 0; i < 20; i++ {
		tui.Consume(models.DecodedFrame{Frame: models.Frame{ID: uint32(i)}, PlainID: uint32(i)})
	}

	tui.actions <- actionScrollUp
	if !tui.PollInput() {
		t.Fatal("Expected PollInput to continue")
	}
	if tui.Rows().Offset() != 4 {
		t.Errorf("Expected scroll by one page of 4, got %d", tui.Rows().Offset())
	}

	tui.actions <- actionScrollDown
	tui.actions <- actionScrollDown
	tui.PollInput()
	if tui.Rows().Offset() != 0 {
		t.Errorf("Expected offset back at 0, got %d", tui.Rows().Offset())
	}

	tui.actions <- actionQuit
	if tui.PollInput() {
		t.Error("Expected PollInput to report quit")
	}
	if tui.PollInput() {
		t.Error("Expected quit to be sticky")
	}
}

func TestScreen(t *testing.T) {
	tui := newTestTUI(chromeLines + 2)
	tui.Consume(models.DecodedFrame{
		Frame:   models.Frame{ID: 0x200, Data: []byte{1}},
		PlainID: 0x200,
		Name:    "MUXMSG",
		Signals: models.SignalValues{"Mux": 1},
	})

	screen := tui.screen(Usage{CPUPercent: 12.5, MemoryMB: 42})
	for _, want := range []string{"CAN-Fusion Monitor", "Frames 1", "MUXMSG", "Mux=1.00", "0x200"} {
		if !strings.Contains(screen, want) {
			t.Errorf("Expected screen to contain %q", want)
		}
	}

	// Render before Start is a no-op
	tui.Render(Usage{})
}

func TestHeaderLine(t *testing.T) {
	expected := "CAN-Fusion Monitor | CPU  12.5% | MEM   42.0 MB | Frames 7"
	if got := headerLine(Usage{CPUPercent: 12.5, MemoryMB: 42}, 7); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

type staticBus models.SocketCANStats

func (b staticBus) Latest() (models.SocketCANStats, bool) { return models.SocketCANStats(b), true }

func TestBusLine(t *testing.T) {
	stats := models.SocketCANStats{Interface: "can0", State: "UP", BusState: "ERROR-ACTIVE", RXPackets: 10, TXPackets: 2, RXErrorCounter: 1}
	expected := "| can0 UP ERROR-ACTIVE rx 10 tx 2 err 1/0"
	if got := busLine(stats); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	tui := NewTUI(NewRowBuffer(10))
	tui.height = func() int { return chromeLines + 4 }
	tui.SetBusStats(staticBus(stats))
	if screen := tui.screen(Usage{}); !strings.Contains(screen, "can0 UP") {
		t.Error("Expected footer to contain bus statistics")
	}
}

func TestUsageSampler(t *testing.T) {
	s := NewUsageSampler()
	u := s.Sample()
	if u.CPUPercent < 0 {
		t.Errorf("Expected non-negative CPU, got %f", u.CPUPercent)
	}
	if u.MemoryMB <= 0 {
		t.Errorf("Expected positive memory, got %f", u.MemoryMB)
	}
}

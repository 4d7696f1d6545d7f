package display

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/pterm/pterm"

	"can-mqtt-bridge/internal/models"
)

// lines used by header, column titles, table border and footer
const chromeLines = 6

type action int

const (
	actionNone action = iota
	actionScrollUp
	actionScrollDown
	actionQuit
)

func actionFor(key keys.Key) action {
	switch key.Code {
	case keys.Up:
		return actionScrollUp
	case keys.Down:
		return actionScrollDown
	case keys.CtrlC:
		return actionQuit
	case keys.RuneKey:
		if len(key.Runes) == 1 && (key.Runes[0] == 'q' || key.Runes[0] == 'Q') {
			return actionQuit
		}
	}
	return actionNone
}

// TUI is the terminal render sink. Consume is called from the pipeline,
// PollInput and Render from the render loop.
type TUI struct {
	rows    *RowBuffer
	area    *pterm.AreaPrinter
	actions chan action

	mu        sync.Mutex
	started   bool
	quit      bool
	height    func() int
	bus       BusStats
	listening chan struct{} // closed when the key listener returns
}

// BusStats supplies the latest interface counters for the footer
type BusStats interface {
	Latest() (models.SocketCANStats, bool)
}

// NewTUI creates a display over rows
func NewTUI(rows *RowBuffer) *TUI {
	return &TUI{
		rows:    rows,
		actions: make(chan action, 16),
		height:  pterm.GetTerminalHeight,
	}
}

// SetBusStats adds interface counters to the footer. Call before Start.
func (t *TUI) SetBusStats(bus BusStats) {
	t.mu.Lock()
	t.bus = bus
	t.mu.Unlock()
}

// Rows returns the history backing the display
func (t *TUI) Rows() *RowBuffer {
	return t.rows
}

// Consume appends a row for frame
func (t *TUI) Consume(frame models.DecodedFrame) {
	t.rows.Append(NewRow(frame))
}

// Start takes over the terminal and begins listening for keys
func (t *TUI) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}

	area, err := pterm.DefaultArea.WithFullscreen(true).Start()
	if err != nil {
		return fmt.Errorf("failed to start terminal area: %w", err)
	}
	t.area = area
	t.started = true

	t.listening = make(chan struct{})
	go t.listen(t.listening)
	return nil
}

func (t *TUI) listen(done chan struct{}) {
	defer close(done)
	err := keyboard.Listen(func(key keys.Key) (bool, error) {
		a := actionFor(key)
		if a == actionNone {
			return false, nil
		}
		select {
		case t.actions <- a:
		default:
		}
		return a == actionQuit, nil
	})
	if err != nil {
		slog.Warn("keyboard listener stopped", "error", err)
	}
}

// PollInput applies pending key presses. It returns false once quit was requested.
func (t *TUI) PollInput() bool {
	for {
		select {
		case a := <-t.actions:
			t.apply(a)
		default:
			return !t.quitRequested()
		}
	}
}

func (t *TUI) quitRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quit
}

func (t *TUI) apply(a action) {
	page := t.visibleRows()
	switch a {
	case actionScrollUp:
		t.rows.ScrollUp(page)
	case actionScrollDown:
		t.rows.ScrollDown(page)
	case actionQuit:
		t.mu.Lock()
		t.quit = true
		t.mu.Unlock()
	}
}

func (t *TUI) visibleRows() int {
	if n := t.height() - chromeLines; n > 1 {
		return n
	}
	return 1
}

// Render redraws the screen
func (t *TUI) Render(usage Usage) {
	t.mu.Lock()
	area := t.area
	t.mu.Unlock()
	if area == nil {
		return
	}
	area.Update(t.screen(usage))
}

func (t *TUI) screen(usage Usage) string {
	var b strings.Builder

	header := headerLine(usage, t.rows.Len())
	b.WriteString(pterm.DefaultHeader.WithFullWidth().
		WithBackgroundStyle(pterm.NewStyle(pterm.BgBlue)).
		WithTextStyle(pterm.NewStyle(pterm.FgWhite)).
		Sprint(header))
	b.WriteString("\n")

	data := pterm.TableData{{"TS(s)", "RawID", "Name", "DLC", "Signals"}}
	for _, row := range t.rows.Window(t.visibleRows()) {
		data = append(data, []string{
			row.TS,
			pterm.FgYellow.Sprint(row.ID),
			pterm.FgCyan.Sprint(row.Name),
			strconv.Itoa(row.DLC),
			row.Signals,
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		table = err.Error()
	}
	b.WriteString(table)
	b.WriteString("\n")

	footer := footerLine(t.rows.Offset())
	t.mu.Lock()
	bus := t.bus
	t.mu.Unlock()
	if bus != nil {
		if stats, ok := bus.Latest(); ok {
			footer += "   " + busLine(stats)
		}
	}
	b.WriteString(pterm.NewStyle(pterm.BgBlue, pterm.FgWhite).Sprint(footer))
	return b.String()
}

func headerLine(usage Usage, frames int) string {
	return fmt.Sprintf("CAN-Fusion Monitor | CPU %5.1f%% | MEM %6.1f MB | Frames %d", usage.CPUPercent, usage.MemoryMB, frames)
}

func footerLine(offset int) string {
	line := "Up/Down : Scroll   q/Ctrl+C : Exit"
	if offset > 0 {
		line += fmt.Sprintf("   (%d rows back)", offset)
	}
	return line
}

func busLine(stats models.SocketCANStats) string {
	line := fmt.Sprintf("| %s %s", stats.Interface, stats.State)
	if stats.BusState != "" {
		line += " " + stats.BusState
	}
	return line + fmt.Sprintf(" rx %d tx %d err %d/%d", stats.RXPackets, stats.TXPackets, stats.RXErrorCounter, stats.TXErrorCounter)
}

// Stop ends the key listener and restores the terminal
func (t *TUI) Stop() {
	t.mu.Lock()
	area, listening := t.area, t.listening
	t.area, t.listening = nil, nil
	t.mu.Unlock()

	if listening != nil {
		select {
		case <-listening:
		default:
			// the listener only returns on a key press
			go func() {
				if err := keyboard.SimulateKeyPress(keys.Key{Code: keys.CtrlC}); err != nil {
					slog.Debug("failed to stop keyboard listener", "error", err)
				}
			}()
			select {
			case <-listening:
			case <-time.After(500 * time.Millisecond):
			}
		}
	}

	if area != nil {
		if err := area.Stop(); err != nil {
			slog.Debug("failed to stop terminal area", "error", err)
		}
	}
}

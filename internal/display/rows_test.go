package display

import (
	"strconv"
	"testing"
)

func fill(b *RowBuffer, n int) {
	for i := 0; i < n; i++ {
		b.Append(Row{TS: strconv.Itoa(i)})
	}
}

func timestamps(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.TS
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRowBufferEvictsOldest(t *testing.T) {
	b := NewRowBuffer(3)
	fill(b, 5)

	if b.Len() != 3 {
		t.Errorf("Expected 3 rows, got %d", b.Len())
	}
	if b.Total() != 5 {
		t.Errorf("Expected total 5, got %d", b.Total())
	}
	if got := timestamps(b.Tail(10)); !equal(got, []string{"2", "3", "4"}) {
		t.Errorf("Expected rows 2..4, got %v", got)
	}
}

func TestRowBufferDefaultLimit(t *testing.T) {
	b := NewRowBuffer(0)
	fill(b, DefaultHistory+5)
	if b.Len() != DefaultHistory {
		t.Errorf("Expected %d rows, got %d", DefaultHistory, b.Len())
	}
}

func TestRowBufferWindowFollowsTail(t *testing.T) {
	b := NewRowBuffer(100)
	fill(b, 10)

	if got := timestamps(b.Window(3)); !equal(got, []string{"7", "8", "9"}) {
		t.Errorf("Expected tail window, got %v", got)
	}
	b.Append(Row{TS: "10"})
	if got := timestamps(b.Window(3)); !equal(got, []string{"8", "9", "10"}) {
		t.Errorf("Expected window to follow new rows, got %v", got)
	}
	if got := b.Window(50); len(got) != 11 {
		t.Errorf("Expected all 11 rows, got %d", len(got))
	}
}

func TestRowBufferScroll(t *testing.T) {
	b := NewRowBuffer(100)
	fill(b, 10)

	b.ScrollUp(3)
	if b.Offset() != 3 {
		t.Errorf("Expected offset 3, got %d", b.Offset())
	}
	if got := timestamps(b.Window(3)); !equal(got, []string{"4", "5", "6"}) {
		t.Errorf("Expected rows 4..6, got %v", got)
	}

	// a scrolled view holds its rows while new ones arrive
	b.Append(Row{TS: "10"})
	if got := timestamps(b.Window(3)); !equal(got, []string{"4", "5", "6"}) {
		t.Errorf("Expected view to stay on rows 4..6, got %v", got)
	}

	b.ScrollUp(100)
	if b.Offset() != 10 {
		t.Errorf("Expected offset clamped to 10, got %d", b.Offset())
	}
	if got := timestamps(b.Window(3)); !equal(got, []string{"0"}) {
		t.Errorf("Expected only the oldest row, got %v", got)
	}

	b.ScrollDown(100)
	if b.Offset() != 0 {
		t.Errorf("Expected offset 0, got %d", b.Offset())
	}
}

func TestRowBufferScrollEmpty(t *testing.T) {
	b := NewRowBuffer(10)
	b.ScrollUp(5)
	if b.Offset() != 0 {
		t.Errorf("Expected offset 0 on empty buffer, got %d", b.Offset())
	}
	if rows := b.Window(5); len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
}

func TestRowBufferWrapsAround(t *testing.T) {
	b := NewRowBuffer(4)
	fill(b, 11)

	if got := timestamps(b.Tail(4)); !equal(got, []string{"7", "8", "9", "10"}) {
		t.Errorf("Expected rows 7..10 in order, got %v", got)
	}
	if got := timestamps(b.Tail(2)); !equal(got, []string{"9", "10"}) {
		t.Errorf("Expected rows 9..10, got %v", got)
	}

	// scrolled while full: evictions keep the view on the same rows
	b.ScrollUp(1)
	if got := timestamps(b.Window(2)); !equal(got, []string{"8", "9"}) {
		t.Errorf("Expected rows 8..9, got %v", got)
	}
	b.Append(Row{TS: "11"})
	if got := timestamps(b.Window(2)); !equal(got, []string{"8", "9"}) {
		t.Errorf("Expected view to stay on rows 8..9, got %v", got)
	}
	if got := timestamps(b.Tail(4)); !equal(got, []string{"8", "9", "10", "11"}) {
		t.Errorf("Expected rows 8..11, got %v", got)
	}
}

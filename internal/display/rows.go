package display

import "sync"

// DefaultHistory is the number of rows kept when no limit is configured
const DefaultHistory = 10000

// RowBuffer is a bounded FIFO of rows with a scroll position. It is
// appended to by the pipeline and read by the render loop.
type RowBuffer struct {
	mu     sync.Mutex
	rows   []Row // ring once len reaches limit
	head   int   // index of the oldest row
	limit  int
	scroll int // rows back from the tail, 0 follows new rows
	total  uint64
}

// NewRowBuffer creates a buffer holding at most limit rows
func NewRowBuffer(limit int) *RowBuffer {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &RowBuffer{limit: limit}
}

// Append adds a row, evicting the oldest when full. A scrolled view stays
// on the rows it shows.
func (b *RowBuffer) Append(row Row) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.rows) < b.limit {
		b.rows = append(b.rows, row)
	} else {
		b.rows[b.head] = row
		b.head = (b.head + 1) % b.limit
	}
	b.total++

	if b.scroll > 0 {
		b.scroll = b.clamp(b.scroll + 1)
	}
}

// Len returns the number of rows held
func (b *RowBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Total returns the number of rows ever appended
func (b *RowBuffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// ScrollUp moves the view page rows towards older rows
func (b *RowBuffer) ScrollUp(page int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scroll = b.clamp(b.scroll + page)
}

// ScrollDown moves the view page rows towards the tail
func (b *RowBuffer) ScrollDown(page int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scroll = b.clamp(b.scroll - page)
}

// Offset returns the scroll position, 0 when following the tail
func (b *RowBuffer) Offset() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scroll
}

func (b *RowBuffer) clamp(scroll int) int {
	if scroll < 0 {
		return 0
	}
	if last := len(b.rows) - 1; scroll > last {
		if last < 0 {
			return 0
		}
		return last
	}
	return scroll
}

// Window returns up to visible rows ending at the scroll position
func (b *RowBuffer) Window(visible int) []Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := len(b.rows) - b.scroll
	return b.copyRange(end-visible, end)
}

// Tail returns the newest n rows regardless of scroll position
func (b *RowBuffer) Tail(n int) []Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.copyRange(len(b.rows)-n, len(b.rows))
}

func (b *RowBuffer) copyRange(start, end int) []Row {
	if start < 0 {
		start = 0
	}
	if end <= start {
		return nil
	}
	out := make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, b.rows[(b.head+i)%len(b.rows)])
	}
	return out
}

package frame

import "sync"

// Bus keeps the latest raw and display frames. There is a single writer (the
// capture loop) and any number of readers. Publishing replaces the previous
// frames; nothing is queued, so slow readers only ever see the newest state.
type Bus struct {
	mu        sync.Mutex
	raw       *Frame
	display   *Frame
	published uint64
	replaced  uint64
}

// BusStats reports publish counters.
type BusStats struct {
	Published uint64 `json:"published"`
	// Replaced counts publishes that overwrote an earlier frame.
	Replaced uint64 `json:"replaced"`
	LastSeq  uint64 `json:"last_seq"`
}

// Publish stores a new raw/display pair. A nil display frame means the raw
// frame is shown unannotated.
func (b *Bus) Publish(raw, display *Frame) {
	if display == nil {
		display = raw
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.raw != nil {
		b.replaced++
	}
	b.raw = raw
	b.display = display
	b.published++
}

// Raw returns the latest unmodified frame, or nil before the first capture.
func (b *Bus) Raw() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.raw
}

// Display returns the latest annotated frame, or nil before the first capture.
func (b *Bus) Display() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.display
}

// Latest returns both frames from the same publish.
func (b *Bus) Latest() (raw, display *Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.raw, b.display
}

// Stats returns publish counters.
func (b *Bus) Stats() BusStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := BusStats{Published: b.published, Replaced: b.replaced}
	if b.raw != nil {
		s.LastSeq = b.raw.Seq
	}
	return s
}

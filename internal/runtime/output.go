package runtime

import (
	"sync"
)

// TruncationMarker is appended to output cut at the byte ceiling.
const TruncationMarker = "\n... [output truncated]"

// capOutput cuts s at limit bytes, appending the truncation marker. The cut
// never fails a run: oversized output is a success with Truncated set.
func capOutput(s string, limit int) (string, bool) {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	if len(s) <= limit {
		return s, false
	}
	return s[:limit] + TruncationMarker, true
}

// cappedBuffer collects output up to a byte ceiling. Writes past the ceiling
// are counted but dropped. It is safe for concurrent use: the watchdog reads
// partial output while the snippet is still writing.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	switch {
	case room >= len(p):
		b.buf = append(b.buf, p...)
	case room > 0:
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
	default:
		b.truncated = true
	}
	// Report full length so writers never see a short-write error.
	return len(p), nil
}

// String returns the captured output, with the truncation marker when the
// ceiling was hit.
func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return string(b.buf) + TruncationMarker
	}
	return string(b.buf)
}

// Truncated reports whether any write overflowed the ceiling.
func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

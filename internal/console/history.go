package console

import "sync"

// History keeps the last executed lines for C-up and C-down.
type History struct {
	mu    sync.Mutex
	lines []string
	max   int
	pos   int
}

func NewHistory(max int) *History {
	return &History{max: max}
}

// Add appends line, skipping direct repetitions, and resets the cursor.
func (h *History) Add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.lines); n == 0 || h.lines[n-1] != line {
		h.lines = append(h.lines, line)
		if len(h.lines) > h.max {
			h.lines = h.lines[len(h.lines)-h.max:]
		}
	}
	h.pos = len(h.lines)
}

// Prev moves to the previous line. It stays on the oldest one.
func (h *History) Prev() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lines) == 0 {
		return "", false
	}
	if h.pos > 0 {
		h.pos--
	}
	return h.lines[h.pos], true
}

// Next moves to the next line; past the newest it returns an empty line.
func (h *History) Next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos >= len(h.lines)-1 {
		h.pos = len(h.lines)
		return "", false
	}
	h.pos++
	return h.lines[h.pos], true
}

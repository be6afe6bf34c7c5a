package logging

import (
	"bytes"
	"strings"
	"sync"
)

// Sink is an io.Writer that buffers complete log lines until drained.
// Writes never block on the reader, which lets the TUI poll it from its own
// loop while a story goroutine keeps logging.
type Sink struct {
	mu      sync.Mutex
	partial bytes.Buffer
	lines   []string
	max     int
}

// NewSink keeps at most max pending lines; older ones are dropped.
func NewSink(max int) *Sink {
	if max <= 0 {
		max = 500
	}
	return &Sink{max: max}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.Write(p)
	for {
		data := s.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.lines = append(s.lines, strings.TrimRight(string(data[:i]), "\r"))
		s.partial.Next(i + 1)
	}
	if over := len(s.lines) - s.max; over > 0 {
		s.lines = append(s.lines[:0], s.lines[over:]...)
	}
	return len(p), nil
}

// Drain returns the buffered lines and empties the buffer.
func (s *Sink) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.lines
	s.lines = nil
	return out
}

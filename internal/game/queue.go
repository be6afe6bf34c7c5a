package game

import "github.com/tatianab/storyloop/internal/story"

// storyQueue is the explicit override list consumed ahead of random
// selection. It is only touched while the turn lock is held.
type storyQueue struct {
	items []*story.Story
}

// replace drops everything planned and leaves s as the only entry.
func (q *storyQueue) replace(s *story.Story) {
	clear(q.items)
	q.items = append(q.items[:0], s)
}

func (q *storyQueue) push(s *story.Story) {
	q.items = append(q.items, s)
}

// pop removes and returns the front entry.
func (q *storyQueue) pop() (*story.Story, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	s := q.items[0]
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return s, true
}

func (q *storyQueue) len() int {
	return len(q.items)
}

func (q *storyQueue) ids() []string {
	out := make([]string, len(q.items))
	for i, s := range q.items {
		out[i] = s.ID()
	}
	return out
}

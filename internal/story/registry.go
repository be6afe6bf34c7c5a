package story

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID     = errors.New("duplicate story id")
	ErrDuplicateSource = errors.New("duplicate story source")
)

// Registry holds every loaded story, in registration order.
type Registry struct {
	stories  []*Story
	byID     map[string]*Story
	bySource map[string]*Story
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Story),
		bySource: make(map[string]*Story),
	}
}

// Register validates def and adds it. A rejected definition leaves the
// registry untouched.
func (r *Registry) Register(def Definition) (*Story, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if prev, ok := r.byID[def.ID]; ok {
		return nil, fmt.Errorf("%w %q in %s (already loaded from %s)", ErrDuplicateID, def.ID, def.Source, prev.Source())
	}
	if _, ok := r.bySource[def.Source]; ok {
		return nil, fmt.Errorf("%w %q", ErrDuplicateSource, def.Source)
	}

	s := &Story{def: def, state: Registered}
	r.stories = append(r.stories, s)
	r.byID[def.ID] = s
	r.bySource[def.Source] = s
	return s, nil
}

func (r *Registry) ByID(id string) (*Story, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) BySource(source string) (*Story, bool) {
	s, ok := r.bySource[source]
	return s, ok
}

// All returns the stories in registration order.
func (r *Registry) All() []*Story {
	out := make([]*Story, len(r.stories))
	copy(out, r.stories)
	return out
}

func (r *Registry) Len() int {
	return len(r.stories)
}

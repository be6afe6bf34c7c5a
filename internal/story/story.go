// Package story defines the narrative units the game selects and runs, the
// registry that holds them, and the context a running story receives.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
)

// ErrUIClosed is returned by UI implementations once the player has left.
// The game stops its loop when a story returns it.
var ErrUIClosed = errors.New("ui closed")

// State is the lifecycle position of a registered story.
type State int

const (
	Registered State = iota
	Ready
	Running
)

func (s State) String() string {
	switch s {
	case Registered:
		return "registered"
	case Ready:
		return "ready"
	case Running:
		return "running"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Definition is what a story author provides. It is never modified once
// registered.
type Definition struct {
	// ID is author-assigned and unique across the registry.
	ID string
	// Source is where the definition came from, relative to the app root.
	// It keys the story's local state in save files.
	Source string

	// OnLoad is optional and runs once, right after registration.
	OnLoad func(ctx context.Context, d *RunData) error
	// SelectCondition reports whether the story may be picked this cycle.
	// It must not mutate d.
	SelectCondition func(d *RunData) bool
	// Run owns the interaction until the narrative beat is finished.
	Run func(ctx context.Context, d *RunData) error
}

// DefinitionError lists everything wrong with a definition.
type DefinitionError struct {
	Source  string
	Reasons []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid story %s: %s", e.Source, strings.Join(e.Reasons, "; "))
}

// Validate checks the required fields.
func (d Definition) Validate() error {
	var reasons []string
	if strings.TrimSpace(d.ID) == "" {
		reasons = append(reasons, "id not provided")
	}
	if strings.TrimSpace(d.Source) == "" {
		reasons = append(reasons, "source not provided")
	}
	if d.SelectCondition == nil {
		reasons = append(reasons, "selectCondition not provided")
	}
	if d.Run == nil {
		reasons = append(reasons, "run not provided")
	}
	if len(reasons) > 0 {
		return &DefinitionError{Source: d.Source, Reasons: reasons}
	}
	return nil
}

// Story is a registered definition plus its lifecycle state.
type Story struct {
	def   Definition
	state State
}

func (s *Story) ID() string     { return s.def.ID }
func (s *Story) Source() string { return s.def.Source }
func (s *Story) State() State   { return s.state }

// Load runs the OnLoad hook and marks the story Ready. The story becomes
// Ready even if the hook fails; the error is returned for logging.
func (s *Story) Load(ctx context.Context, d *RunData) (err error) {
	defer func() {
		s.state = Ready
		if r := recover(); r != nil {
			err = fmt.Errorf("story %s: onLoad panic: %v", s.def.ID, r)
		}
	}()
	if s.def.OnLoad == nil {
		return nil
	}
	return s.def.OnLoad(ctx, d)
}

// Selectable evaluates the select condition. A panicking condition counts
// as false and is returned as an error.
func (s *Story) Selectable(d *RunData) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("story %s: selectCondition panic: %v", s.def.ID, r)
		}
	}()
	return s.def.SelectCondition(d), nil
}

// Run hands control to the story until it returns. Panics become errors.
func (s *Story) Run(ctx context.Context, d *RunData) (err error) {
	s.state = Running
	defer func() {
		s.state = Ready
		if r := recover(); r != nil {
			err = fmt.Errorf("story %s: run panic: %v", s.def.ID, r)
		}
	}()
	return s.def.Run(ctx, d)
}

// RunData is the context bundle handed to every story callback.
type RunData struct {
	Global Record
	Local  Record
	UI     UI
	Game   Director
	Logger logging.Logger
	Rng    *rng.Rng
}

// Director is the narrow mutation surface a running story gets from the game.
type Director interface {
	// SetNextStory drops anything planned and makes id run next.
	SetNextStory(id string) error
	// QueueNextStory appends id to the planned sequence.
	QueueNextStory(id string) error
}

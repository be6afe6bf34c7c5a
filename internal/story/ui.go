package story

import (
	"context"
	"time"
)

// UI is the interaction capability a story drives. Calls block until the
// player answers; that is the only place a running story suspends.
type UI interface {
	Start(ctx context.Context) error
	End(ctx context.Context) error
	// UserSelect presents options and returns the Value of the chosen one.
	UserSelect(ctx context.Context, options []Option, cfg *SelectConfig) (any, error)
	// Text displays text and returns once it finished or was skipped.
	Text(ctx context.Context, text string) error
}

// Option is one entry of a selection list.
type Option struct {
	Text     string
	Value    any
	Disabled bool
}

// SelectConfig tunes UserSelect. A nil config means defaults.
type SelectConfig struct {
	Prompt string
	// RandomSort shuffles the options with the game's shared engine.
	RandomSort bool
	// Preselected is the Value highlighted first. Defaults to the first
	// enabled option.
	Preselected any
	// TimeLimit auto-selects the highlighted option when it expires.
	TimeLimit time.Duration
}

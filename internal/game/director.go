package game

import (
	"context"
	"fmt"

	"github.com/tatianab/storyloop/internal/story"
)

// director is the Director handed to running stories. The turn lock is
// already held by the loop when it is called.
type director struct {
	g *Game
}

func (d director) SetNextStory(id string) error {
	s, ok := d.g.registry.ByID(id)
	if !ok {
		return fmt.Errorf("set next story: %w %q", ErrUnknownStory, id)
	}
	d.g.queue.replace(s)
	d.g.storyLog.Debug("next story set", "id", id)
	return nil
}

func (d director) QueueNextStory(id string) error {
	s, ok := d.g.registry.ByID(id)
	if !ok {
		return fmt.Errorf("queue next story: %w %q", ErrUnknownStory, id)
	}
	d.g.queue.push(s)
	d.g.storyLog.Debug("story queued", "id", id, "queue", d.g.queue.len())
	return nil
}

// turnUI releases the turn lock while the story waits on the player.
type turnUI struct {
	g  *Game
	ui story.UI
}

func (t turnUI) Start(ctx context.Context) error { return t.ui.Start(ctx) }
func (t turnUI) End(ctx context.Context) error   { return t.ui.End(ctx) }

func (t turnUI) UserSelect(ctx context.Context, options []story.Option, cfg *story.SelectConfig) (any, error) {
	t.g.turn.Unlock()
	defer t.g.turn.Lock()
	return t.ui.UserSelect(ctx, options, cfg)
}

func (t turnUI) Text(ctx context.Context, text string) error {
	t.g.turn.Unlock()
	defer t.g.turn.Lock()
	return t.ui.Text(ctx, text)
}

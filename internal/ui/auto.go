package ui

import (
	"context"
	"fmt"
	"sync"

	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

// Auto is a headless UI that answers every select by picking one enabled
// option with the shared engine. Each select costs one draw, plus the
// shuffle draws of a RandomSort.
type Auto struct {
	rng *rng.Rng
	log logging.Logger

	mu         sync.Mutex
	transcript []string
	selects    int
}

func NewAuto(r *rng.Rng, log logging.Logger) *Auto {
	if log == nil {
		log = logging.Discard()
	}
	return &Auto{rng: r, log: log}
}

func (a *Auto) Start(context.Context) error {
	a.log.Debug("auto ui started")
	return nil
}

func (a *Auto) End(context.Context) error {
	a.log.Debug("auto ui ended", "selects", a.Selects())
	return nil
}

func (a *Auto) UserSelect(ctx context.Context, options []story.Option, cfg *story.SelectConfig) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arranged, _, err := Arrange(a.rng, options, cfg)
	if err != nil {
		return nil, err
	}
	chosen := arranged[rng.Pick(a.rng, Enabled(arranged))]

	prompt := ""
	if cfg != nil {
		prompt = cfg.Prompt
	}
	entry := "> " + chosen.Text
	if prompt != "" {
		entry = fmt.Sprintf("> %s %s", prompt, chosen.Text)
	}
	a.mu.Lock()
	a.selects++
	a.transcript = append(a.transcript, entry)
	a.mu.Unlock()
	a.log.Verbose("option picked", "prompt", prompt, "option", chosen.Text)
	return chosen.Value, nil
}

func (a *Auto) Text(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = append(a.transcript, text)
	return nil
}

// Transcript returns every text shown and every choice made, in order.
func (a *Auto) Transcript() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.transcript...)
}

func (a *Auto) Selects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selects
}

package narrator

import (
	"context"
	"sync"

	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
	"github.com/tatianab/storyloop/internal/ui"
)

// recentTexts is how much of the story the player remembers.
const recentTexts = 8

type chooseReply struct {
	Choice int    `yaml:"choice"`
	Reason string `yaml:"reason"`
}

type numberedOption struct {
	Number int
	Text   string
}

// Player is a UI that lets the generator pick options. When the generator
// fails or answers with something that is not an enabled option, it falls
// back to a uniform pick with the shared engine.
type Player struct {
	gen Generator
	rng *rng.Rng
	log logging.Logger

	mu     sync.Mutex
	recent []string
	picks  int
	falls  int
}

func NewPlayer(gen Generator, r *rng.Rng, log logging.Logger) *Player {
	if log == nil {
		log = logging.Discard()
	}
	return &Player{gen: gen, rng: r, log: log}
}

func (p *Player) Start(context.Context) error { return nil }

func (p *Player) End(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("player finished", "picks", p.picks, "fallbacks", p.falls)
	return nil
}

func (p *Player) Text(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recent = append(p.recent, text)
	if len(p.recent) > recentTexts {
		p.recent = p.recent[len(p.recent)-recentTexts:]
	}
	return nil
}

func (p *Player) UserSelect(ctx context.Context, options []story.Option, cfg *story.SelectConfig) (any, error) {
	arranged, _, err := ui.Arrange(p.rng, options, cfg)
	if err != nil {
		return nil, err
	}

	if i, ok := p.ask(ctx, arranged, cfg); ok {
		p.mu.Lock()
		p.picks++
		p.mu.Unlock()
		return arranged[i].Value, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.falls++
	p.mu.Unlock()
	return arranged[rng.Pick(p.rng, ui.Enabled(arranged))].Value, nil
}

// ask returns the index the generator chose, if it is usable.
func (p *Player) ask(ctx context.Context, options []story.Option, cfg *story.SelectConfig) (int, bool) {
	data := struct {
		Recent  []string
		Prompt  string
		Options []numberedOption
	}{}
	if cfg != nil {
		data.Prompt = cfg.Prompt
	}
	p.mu.Lock()
	data.Recent = append(data.Recent, p.recent...)
	p.mu.Unlock()
	for i, opt := range options {
		if !opt.Disabled {
			data.Options = append(data.Options, numberedOption{Number: i + 1, Text: opt.Text})
		}
	}

	prompt, err := render(chooseTmpl, data)
	if err != nil {
		p.log.Error("rendering choose prompt", "error", err)
		return 0, false
	}
	raw, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		p.log.Warn("generator failed, picking at random", "error", err)
		return 0, false
	}
	var reply chooseReply
	if err := parseYAML(raw, &reply); err != nil {
		p.log.Warn("unreadable choice, picking at random", "error", err)
		return 0, false
	}

	i := reply.Choice - 1
	if i < 0 || i >= len(options) || options[i].Disabled {
		p.log.Warn("invalid choice, picking at random", "choice", reply.Choice)
		return 0, false
	}
	p.log.Verbose("player chose", "option", options[i].Text, "reason", reply.Reason)
	return i, true
}

// Stats returns how many selects the generator answered and how many fell
// back to the engine.
func (p *Player) Stats() (picks, fallbacks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.picks, p.falls
}

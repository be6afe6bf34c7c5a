// Package tui is the full-screen terminal UI. The bubbletea program runs on
// its own goroutine; the story goroutine talks to it by sending request
// messages and waiting on their reply channels.
package tui

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/storyloop/internal/console"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
	"github.com/tatianab/storyloop/internal/ui"
)

var errNotStarted = errors.New("tui not started")

type Options struct {
	Rng    *rng.Rng
	Logger logging.Logger
	// Sink feeds the log pane shown in debug mode.
	Sink *logging.Sink
	// CharDelay is the typewriter speed. Zero means the default, a negative
	// value prints text at once.
	CharDelay time.Duration
	// ProgramOptions are appended to the defaults (alt screen, ctx).
	ProgramOptions []tea.ProgramOption
}

// UI implements story.UI on top of a bubbletea program.
type UI struct {
	opts    Options
	console *console.Console

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
	err     error
}

func New(opts Options) *UI {
	if opts.Rng == nil {
		opts.Rng = rng.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.CharDelay == 0 {
		opts.CharDelay = defaultCharDelay
	}
	return &UI{opts: opts}
}

// AttachConsole enables the debug console. It must be called before Start.
func (u *UI) AttachConsole(c *console.Console) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.console = c
}

func (u *UI) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.program != nil {
		return nil
	}

	m := newModel(u.opts.CharDelay, u.opts.Sink, u.console, u.opts.Logger)
	opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, u.opts.ProgramOptions...)
	u.program = tea.NewProgram(m, opts...)
	u.done = make(chan struct{})

	go func() {
		defer close(u.done)
		if _, err := u.program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			u.err = err
		}
	}()
	return nil
}

// End shows the closing screen and waits for the player to leave it.
func (u *UI) End(ctx context.Context) error {
	p, done := u.running()
	if p == nil {
		return nil
	}
	p.Send(endMsg{})
	select {
	case <-done:
	case <-ctx.Done():
		p.Quit()
		<-done
	}
	return u.err
}

func (u *UI) UserSelect(ctx context.Context, options []story.Option, cfg *story.SelectConfig) (any, error) {
	arranged, selected, err := ui.Arrange(u.opts.Rng, options, cfg)
	if err != nil {
		return nil, err
	}
	p, done := u.running()
	if p == nil {
		return nil, errNotStarted
	}

	msg := selectMsg{options: arranged, selected: selected, reply: make(chan selectReply, 1)}
	if cfg != nil {
		msg.prompt = cfg.Prompt
		msg.limit = cfg.TimeLimit
	}
	p.Send(msg)

	select {
	case r := <-msg.reply:
		return r.value, r.err
	case <-done:
		return nil, story.ErrUIClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (u *UI) Text(ctx context.Context, text string) error {
	p, done := u.running()
	if p == nil {
		return errNotStarted
	}

	msg := textMsg{text: text, reply: make(chan error, 1)}
	p.Send(msg)

	select {
	case err := <-msg.reply:
		return err
	case <-done:
		return story.ErrUIClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *UI) running() (*tea.Program, chan struct{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.program, u.done
}

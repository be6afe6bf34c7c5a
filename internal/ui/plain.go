package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

// Plain is a line based UI: options are printed as a numbered list and the
// player answers with a number. An empty line takes the highlighted option,
// "q" or the end of the input closes the game.
type Plain struct {
	in  io.Reader
	out io.Writer
	rng *rng.Rng
	log logging.Logger

	promptStyle   lipgloss.Style
	disabledStyle lipgloss.Style
	hintStyle     lipgloss.Style

	once  sync.Once
	lines chan string
	eof   chan struct{}
}

func NewPlain(in io.Reader, out io.Writer, r *rng.Rng, log logging.Logger) *Plain {
	if log == nil {
		log = logging.Discard()
	}
	renderer := lipgloss.NewRenderer(out)
	return &Plain{
		in:            in,
		out:           out,
		rng:           r,
		log:           log,
		promptStyle:   renderer.NewStyle().Bold(true),
		disabledStyle: renderer.NewStyle().Faint(true),
		hintStyle:     renderer.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true),
	}
}

func (p *Plain) Start(context.Context) error {
	p.startReader()
	return nil
}

func (p *Plain) End(context.Context) error {
	fmt.Fprintln(p.out, p.hintStyle.Render("The end."))
	return nil
}

func (p *Plain) startReader() {
	p.once.Do(func() {
		p.lines = make(chan string)
		p.eof = make(chan struct{})
		go func() {
			defer close(p.eof)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- scanner.Text()
			}
		}()
	})
}

func (p *Plain) UserSelect(ctx context.Context, options []story.Option, cfg *story.SelectConfig) (any, error) {
	p.startReader()
	arranged, selected, err := Arrange(p.rng, options, cfg)
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.Prompt != "" {
		fmt.Fprintln(p.out, p.promptStyle.Render(cfg.Prompt))
	}
	for i, opt := range arranged {
		marker := " "
		if i == selected {
			marker = "*"
		}
		text := opt.Text
		if opt.Disabled {
			text = p.disabledStyle.Render(text + " (disabled)")
		}
		fmt.Fprintf(p.out, "%s %d) %s\n", marker, i+1, text)
	}

	var timeout <-chan time.Time
	if cfg != nil && cfg.TimeLimit > 0 {
		fmt.Fprintln(p.out, p.hintStyle.Render(fmt.Sprintf("(auto-selects in %s)", cfg.TimeLimit)))
		timer := time.NewTimer(cfg.TimeLimit)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		fmt.Fprint(p.out, "> ")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			fmt.Fprintln(p.out)
			p.log.Debug("select timed out", "option", arranged[selected].Text)
			return arranged[selected].Value, nil
		case <-p.eof:
			return nil, story.ErrUIClosed
		case line := <-p.lines:
			line = strings.TrimSpace(line)
			switch line {
			case "":
				return arranged[selected].Value, nil
			case "q", "quit":
				return nil, story.ErrUIClosed
			}
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > len(arranged) || arranged[n-1].Disabled {
				fmt.Fprintln(p.out, p.hintStyle.Render("Pick the number of an enabled option."))
				continue
			}
			return arranged[n-1].Value, nil
		}
	}
}

func (p *Plain) Text(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.out, text)
	return err
}

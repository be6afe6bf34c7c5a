package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tatianab/storyloop/internal/config"
	"github.com/tatianab/storyloop/internal/game"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/narrator"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
	"github.com/tatianab/storyloop/internal/ui"
)

// Reasons a simulation stops.
const (
	StopExhausted = "exhausted"
	StopMaxCycles = "max-cycles"
	StopClosed    = "closed"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	MaxCycles int
	LLM       bool
	Save      string
	Format    string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play headless, picking options automatically",
		Long: `Play the game without a terminal UI. Every selection is made by the
automatic player with the shared rng, so two runs with the same seed produce
the same trace. With --llm the options are chosen by Gemini instead.

Example:
  storyloop simulate --seed 42
  storyloop simulate --seed 42 --format json --save after-run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.MaxCycles, "max-cycles", 1000, "stop after this many cycles (0 for no limit)")
	cmd.Flags().BoolVar(&opts.LLM, "llm", false, "let Gemini pick the options (needs GEMINI_API_KEY)")
	cmd.Flags().StringVar(&opts.Save, "save", "", "save the game under this name when done")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	cfg := opts.Config()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sim := Simulation{
		Config:    cfg,
		MaxCycles: opts.MaxCycles,
		Save:      opts.Save,
		LogOut:    cmd.ErrOrStderr(),
	}
	if opts.LLM {
		gem, err := openGenerator(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create player", err)
		}
		if gem == nil {
			return NewExitError(ExitCommandError, "--llm needs GEMINI_API_KEY")
		}
		defer gem.Close()
		sim.Generator = gem
	}

	trace, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(trace)
}

// Simulation is a headless session.
type Simulation struct {
	Config    *config.Config
	MaxCycles int
	// Generator picks the options instead of the automatic player and tells
	// interludes, when set.
	Generator narrator.Generator
	// Save names the save file written at the end, if any.
	Save   string
	LogOut io.Writer
}

// Trace is the outcome of a simulation.
type Trace struct {
	Seed       int64        `json:"seed"`
	Cycles     []TraceCycle `json:"cycles"`
	Transcript []string     `json:"transcript,omitempty"`
	Rng        rng.Status   `json:"rng"`
	Stopped    string       `json:"stopped"`
}

// TraceCycle is one selection, with the rng position right after it.
type TraceCycle struct {
	Number    int    `json:"number"`
	Story     string `json:"story"`
	Source    string `json:"source"`
	Queued    bool   `json:"queued,omitempty"`
	UsedCount uint64 `json:"usedCount"`
}

type traceRecorder struct {
	mu     sync.Mutex
	cycles []TraceCycle
}

func (t *traceRecorder) Record(_ context.Context, c game.Cycle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycles = append(t.cycles, TraceCycle{
		Number:    c.Number,
		Story:     c.StoryID,
		Source:    c.Source,
		Queued:    c.Queued,
		UsedCount: c.Rng.UsedCount,
	})
	return nil
}

// Run plays until no story is eligible, MaxCycles is reached or the player
// gives up.
func (sim Simulation) Run(ctx context.Context) (*Trace, error) {
	rec := &traceRecorder{}
	var auto *ui.Auto

	s, err := newSession(ctx, sim.Config, setupOptions{
		Command: "simulate",
		LogOut:  sim.LogOut,
		MakeUI: func(r *rng.Rng, log *logging.Log) (story.UI, error) {
			if sim.Generator != nil {
				return narrator.NewPlayer(sim.Generator, r, log.Named("player")), nil
			}
			auto = ui.NewAuto(r, log.Named("ui"))
			return auto, nil
		},
		Generator: sim.Generator,
		Recorders: []game.Recorder{rec},
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.game.Init(ctx); err != nil {
		return nil, WrapExitError(ExitFailure, "failed to load stories", err)
	}
	if err := s.ui.Start(ctx); err != nil {
		return nil, WrapExitError(ExitFailure, "failed to start ui", err)
	}

	stopped := StopMaxCycles
	for n := 0; sim.MaxCycles <= 0 || n < sim.MaxCycles; n++ {
		ran, err := s.game.Step(ctx)
		if errors.Is(err, story.ErrUIClosed) {
			stopped = StopClosed
			break
		}
		if err != nil {
			return nil, WrapExitError(ExitFailure, "simulation failed", err)
		}
		if !ran {
			stopped = StopExhausted
			break
		}
	}
	if err := s.ui.End(ctx); err != nil {
		return nil, WrapExitError(ExitFailure, "failed to end ui", err)
	}

	if sim.Save != "" {
		if err := s.game.SaveGame(sim.Save); err != nil {
			return nil, WrapExitError(ExitFailure, "failed to save game", err)
		}
	}
	s.finish(context.WithoutCancel(ctx))

	trace := &Trace{
		Cycles:  rec.cycles,
		Rng:     s.rng.Status(),
		Stopped: stopped,
	}
	trace.Seed = trace.Rng.Seed
	if auto != nil {
		trace.Transcript = auto.Transcript()
	}
	return trace, nil
}

func (t *Trace) Text() string {
	rows := make([][]string, 0, len(t.Cycles))
	for _, c := range t.Cycles {
		queued := ""
		if c.Queued {
			queued = "yes"
		}
		rows = append(rows, []string{fmt.Sprint(c.Number), c.Story, c.Source, queued, fmt.Sprint(c.UsedCount)})
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"cycle", "story", "source", "queued", "rng used"}, rows))
	b.WriteString("\n")
	fmt.Fprintf(&b, "stopped: %s after %d cycles\n", t.Stopped, len(t.Cycles))
	fmt.Fprintf(&b, "rng seed=%d usedCount=%d", t.Rng.Seed, t.Rng.UsedCount)
	return b.String()
}

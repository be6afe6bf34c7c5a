package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tatianab/storyloop/internal/console"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/narrator"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
	"github.com/tatianab/storyloop/internal/tui"
	"github.com/tatianab/storyloop/internal/ui"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Plain bool
	Load  string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the game in the terminal",
		Long: `Play the game in a full-screen terminal UI, or as plain numbered lists with
--plain. In debug mode the backquote key opens the console (/help lists its
commands).

Example:
  storyloop play
  storyloop play --debug --load slot1.json
  storyloop play --plain --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Plain, "plain", false, "use the line based UI")
	cmd.Flags().StringVar(&opts.Load, "load", "", "load this save before playing")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *PlayOptions) error {
	cfg := opts.Config()
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gen narrator.Generator
	gem, err := openGenerator(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create narrator", err)
	}
	if gem != nil {
		defer gem.Close()
		gen = gem
	}

	var (
		logOut io.Writer
		sink   *logging.Sink
		screen *tui.UI
	)
	switch {
	case !opts.Plain:
		sink = logging.NewSink(0)
		logOut = sink
	case opts.Verbose:
		logOut = cmd.ErrOrStderr()
	}

	s, err := newSession(ctx, cfg, setupOptions{
		Command: "play",
		LogOut:  logOut,
		MakeUI: func(r *rng.Rng, log *logging.Log) (story.UI, error) {
			if opts.Plain {
				return ui.NewPlain(cmd.InOrStdin(), cmd.OutOrStdout(), r, log.Named("ui")), nil
			}
			screen = tui.New(tui.Options{
				Rng:    r,
				Logger: log.Named("ui"),
				Sink:   sink,
				ProgramOptions: []tea.ProgramOption{
					tea.WithInput(cmd.InOrStdin()),
					tea.WithOutput(cmd.OutOrStdout()),
				},
			})
			return screen, nil
		},
		Generator: gen,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if screen != nil && cfg.Debug {
		screen.AttachConsole(console.New(s.game, s.log.Named("console")))
	}

	if err := s.game.Init(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to load stories", err)
	}
	if opts.Load != "" {
		if err := s.game.LoadGame(opts.Load); err != nil {
			return WrapExitError(ExitCommandError, "failed to load game", err)
		}
	}

	err = s.game.Start(ctx)
	s.finish(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "game failed", err)
	}
	return nil
}

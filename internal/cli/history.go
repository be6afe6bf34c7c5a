package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tatianab/storyloop/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Format string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [session]",
		Short: "List recorded sessions, or the cycles of one",
		Long: `List the sessions recorded in the journal, newest first. Given a session id,
or a unique prefix of one, list the stories it ran.

Example:
  storyloop history --journal storyloop.db
  storyloop history --journal storyloop.db 0199a3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	cfg := opts.Config()
	if cfg.Journal == "" {
		return NewExitError(ExitCommandError, "no journal configured (use --journal)")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if len(args) == 0 {
		sessions, err := j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list sessions", err)
		}
		return out.Success(sessionList(sessions))
	}

	id, err := j.Resolve(ctx, args[0])
	if errors.Is(err, journal.ErrSessionNotFound) || errors.Is(err, journal.ErrAmbiguousSession) {
		return WrapExitError(ExitCommandError, "unknown session", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to find session", err)
	}
	cycles, err := j.Cycles(ctx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list cycles", err)
	}
	return out.Success(sessionCycles{ID: id, Cycles: cycles})
}

type sessionList []journal.SessionInfo

func (l sessionList) Text() string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		ended := "-"
		if !s.EndedAt.IsZero() {
			ended = s.EndedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			s.ID,
			s.Command,
			fmt.Sprint(s.Seed),
			s.StartedAt.Local().Format(time.DateTime),
			ended,
			fmt.Sprint(s.Cycles),
		})
	}
	return renderTable([]string{"session", "command", "seed", "started", "ended", "cycles"}, rows) +
		fmt.Sprintf("\n%d sessions", len(l))
}

type sessionCycles struct {
	ID     string                `json:"id"`
	Cycles []journal.CycleRecord `json:"cycles"`
}

func (s sessionCycles) Text() string {
	rows := make([][]string, 0, len(s.Cycles))
	for _, c := range s.Cycles {
		queued := ""
		if c.Queued {
			queued = "yes"
		}
		rows = append(rows, []string{fmt.Sprint(c.Number), c.StoryID, c.Source, queued, fmt.Sprint(c.Rng.UsedCount)})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "session %s\n", s.ID)
	b.WriteString(renderTable([]string{"cycle", "story", "source", "queued", "rng used"}, rows))
	return b.String()
}

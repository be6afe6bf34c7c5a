package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tatianab/storyloop/internal/game"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <save> [path...]",
		Short: "Show the content of a save file",
		Long: `Show a summary of a save file, or the values at the given paths.

The save is looked up as given first, then inside the savegames folder.
Paths use the console syntax: currentStory, global.<key>, local.<key> for the
saved current story, or local.<source>.<key> for any story.

Example:
  storyloop inspect slot1.json
  storyloop inspect slot1.json global.gold local.stories/story-a.story.lua.runs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, rootOpts, args[0], args[1:])
		},
	}
	return cmd
}

func runInspect(cmd *cobra.Command, opts *RootOptions, name string, paths []string) error {
	path := name
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(opts.Config().SaveDir, name)
	}
	f, err := game.ReadSave(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read save", err)
	}

	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, summarize(path, f))
		return nil
	}

	missing := 0
	for _, p := range paths {
		value, found, err := f.Query(p)
		switch {
		case errors.Is(err, game.ErrQuerySyntax):
			return WrapExitError(ExitCommandError, "invalid path", err)
		case err != nil:
			return WrapExitError(ExitFailure, "query failed", err)
		case !found:
			missing++
			fmt.Fprintf(out, "%s not found or not defined\n", p)
		default:
			fmt.Fprintf(out, "%s = %s\n", p, value)
		}
	}
	if missing > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d paths not found", missing))
	}
	return nil
}

func summarize(path string, f *game.SaveFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "file: %s\n", path)
	current := f.CurrentStory
	if current == "" {
		current = "(none)"
	}
	fmt.Fprintf(&b, "current story: %s\n", current)
	if f.Rng != nil {
		fmt.Fprintf(&b, "rng: seed=%d usedCount=%d\n", f.Rng.Seed, f.Rng.UsedCount)
	}
	fmt.Fprintf(&b, "global: %s\n", keyList(f.Global))

	sources := make([]string, 0, len(f.Local))
	for s := range f.Local {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, []string{s, keyList(f.Local[s])})
	}
	b.WriteString(renderTable([]string{"local", "keys"}, rows))
	return b.String()
}

func keyList[M ~map[string]V, V any](m M) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

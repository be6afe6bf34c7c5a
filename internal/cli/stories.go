package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tatianab/storyloop/internal/script"
)

// StoriesOptions holds flags for the stories command.
type StoriesOptions struct {
	*RootOptions
	Format string
}

// NewStoriesCommand creates the stories command.
func NewStoriesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoriesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stories",
		Short: "List the story files found in the stories folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStories(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

// StoryInfo describes one discovered story.
type StoryInfo struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	OnLoad bool   `json:"onLoad"`
}

// StoryList is the result of the stories command.
type StoryList struct {
	Stories []StoryInfo `json:"stories"`
	Errors  []string    `json:"errors,omitempty"`
}

func runStories(cmd *cobra.Command, opts *StoriesOptions) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	cfg := opts.Config()

	defs, errs := script.NewLoader().Discover(cfg.StoriesDirs)
	list := StoryList{Stories: []StoryInfo{}}
	for _, def := range defs {
		list.Stories = append(list.Stories, StoryInfo{
			ID:     def.ID,
			Source: def.Source,
			OnLoad: def.OnLoad != nil,
		})
	}
	for _, err := range errs {
		list.Errors = append(list.Errors, err.Error())
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(list); err != nil {
		return err
	}
	if len(errs) > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d story files failed to load", len(errs)), errors.Join(errs...))
	}
	return nil
}

func (l StoryList) Text() string {
	rows := make([][]string, 0, len(l.Stories))
	for _, s := range l.Stories {
		rows = append(rows, []string{s.ID, s.Source, yesNo(s.OnLoad)})
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"id", "source", "on_load"}, rows))
	fmt.Fprintf(&b, "\n%d stories", len(l.Stories))
	for _, e := range l.Errors {
		b.WriteString("\nerror: " + e)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

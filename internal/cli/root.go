// Package cli wires the configuration, the game and its collaborators into
// the storyloop commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tatianab/storyloop/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Debug      bool
	Seed       int64
	Discard    uint64
	Stories    []string
	SaveDir    string
	Journal    string

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the storyloop CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storyloop",
		Short: "storyloop - a game told in small stories",
		Long: `storyloop runs a narrative game made of independent stories written in Lua.

Each cycle the engine picks the next story, either one a previous story asked
for or a random one among those whose select condition holds, and runs it.
The game ends when no story is left to tell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultFile+" if present)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&opts.Debug, "debug", false, "enable the debug console and indented saves")
	flags.Int64Var(&opts.Seed, "seed", 0, "rng seed (0 derives one from the clock)")
	flags.Uint64Var(&opts.Discard, "discard", 0, "rng draws to skip after seeding")
	flags.StringArrayVar(&opts.Stories, "stories", nil, "stories folder (repeatable)")
	flags.StringVar(&opts.SaveDir, "save-dir", "", "savegames folder")
	flags.StringVar(&opts.Journal, "journal", "", "sqlite file that records sessions")

	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewStoriesCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// resolve loads the config file and environment, then applies the flags
// that were set explicitly.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = o.Debug
	}
	if flags.Changed("seed") {
		cfg.Seed = o.Seed
	}
	if flags.Changed("discard") {
		cfg.Discard = o.Discard
	}
	if flags.Changed("stories") {
		cfg.StoriesDirs = o.Stories
	}
	if flags.Changed("save-dir") {
		cfg.SaveDir = o.SaveDir
	}
	if flags.Changed("journal") {
		cfg.Journal = o.Journal
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}

	o.cfg = cfg
	return nil
}

// Config is the resolved configuration, available once a command runs.
func (o *RootOptions) Config() *config.Config {
	if o.cfg == nil {
		return config.Default()
	}
	return o.cfg
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func checkFormat(format string) error {
	if !isValidFormat(format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", format, ValidFormats))
	}
	return nil
}

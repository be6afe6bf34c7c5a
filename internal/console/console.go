// Package console implements the debug console: a line of the form
// "/command args..." is tokenized and run against the game.
package console

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tatianab/storyloop/internal/game"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
)

// Target is the part of the game the console drives.
type Target interface {
	Query(path string) (value string, found bool, err error)
	ValueList(scope string) []string
	SaveGame(name string) error
	LoadGame(name string) error
	ListSaves() ([]string, error)
	RngStatus() rng.Status
}

// Result is the outcome of one console line.
type Result struct {
	Messages []string
	// Exit asks the UI to close the game.
	Exit bool
}

type command struct {
	usage    string
	run      func(c *Console, args []string, res *Result)
	complete func(c *Console, text string) (string, []string)
}

var commandLine = regexp.MustCompile(`(?i)^\s*/([a-z_0-9]+)\s*(.*)`)

type Console struct {
	target   Target
	log      logging.Logger
	commands map[string]command
	History  *History
}

func New(target Target, log logging.Logger) *Console {
	if log == nil {
		log = logging.Discard()
	}
	return &Console{
		target:   target,
		log:      log,
		commands: commands,
		History:  NewHistory(100),
	}
}

// Commands returns the command names, with their leading slash, sorted.
func (c *Console) Commands() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, "/"+name)
	}
	sort.Strings(names)
	return names
}

// Exec runs one console line.
func (c *Console) Exec(line string) Result {
	var res Result
	if strings.TrimSpace(line) == "" {
		return res
	}
	c.History.Add(line)

	m := commandLine.FindStringSubmatch(line)
	if m == nil {
		res.Messages = append(res.Messages, "Syntax error. Try with /help")
		return res
	}
	name := strings.ToLower(m[1])
	cmd, ok := c.commands[name]
	if !ok {
		res.Messages = append(res.Messages, fmt.Sprintf("Unknown command %s", name))
		return res
	}
	c.log.Debug("console command", "command", name)
	cmd.run(c, Tokenize(m[2]), &res)
	return res
}

var commands = map[string]command{
	"help": {
		usage: "/help",
		run: func(c *Console, _ []string, res *Result) {
			res.Messages = append(res.Messages, "Available commands: "+strings.Join(c.Commands(), ", "))
			for _, name := range c.Commands() {
				res.Messages = append(res.Messages, "  "+c.commands[name[1:]].usage)
			}
			res.Messages = append(res.Messages,
				"Console keys:",
				" [ ` ] Toggle the console",
				" [ TAB ] Auto-complete",
				" [ C-up ] Previous command",
				" [ C-down ] Next command",
				" [ up | PgUp ] Scroll log messages up",
				" [ down | PgDown ] Scroll log messages down",
			)
		},
	},
	"echo": {
		usage: "/echo <text...>",
		run: func(_ *Console, args []string, res *Result) {
			res.Messages = append(res.Messages, strings.Join(args, " "))
		},
	},
	"get": {
		usage:    "/get <currentStory|global.key|local.key>",
		run:      runGet,
		complete: completeGet,
	},
	"save": {
		usage: "/save <file>",
		run: func(c *Console, args []string, res *Result) {
			if len(args) != 1 {
				res.Messages = append(res.Messages, "Usage: /save <file>")
				return
			}
			if err := c.target.SaveGame(args[0]); err != nil {
				res.Messages = append(res.Messages, fmt.Sprintf("Error: %v", err))
				return
			}
			res.Messages = append(res.Messages, fmt.Sprintf("Game saved to %s", args[0]))
		},
		complete: completeSaves,
	},
	"load": {
		usage: "/load <file>",
		run: func(c *Console, args []string, res *Result) {
			if len(args) != 1 {
				res.Messages = append(res.Messages, "Usage: /load <file>")
				return
			}
			if err := c.target.LoadGame(args[0]); err != nil {
				res.Messages = append(res.Messages, fmt.Sprintf("Error: %v", err))
				return
			}
			res.Messages = append(res.Messages, fmt.Sprintf("Game loaded from %s", args[0]))
		},
		complete: completeSaves,
	},
	"saves": {
		usage: "/saves",
		run: func(c *Console, _ []string, res *Result) {
			saves, err := c.target.ListSaves()
			if err != nil {
				res.Messages = append(res.Messages, fmt.Sprintf("Error: %v", err))
				return
			}
			if len(saves) == 0 {
				res.Messages = append(res.Messages, "No saved games")
				return
			}
			res.Messages = append(res.Messages, strings.Join(saves, " "))
		},
	},
	"status": {
		usage: "/status",
		run: func(c *Console, _ []string, res *Result) {
			st := c.target.RngStatus()
			res.Messages = append(res.Messages, fmt.Sprintf("rng seed=%d usedCount=%d", st.Seed, st.UsedCount))
		},
	},
	"exit": {
		usage: "/exit",
		run: func(_ *Console, _ []string, res *Result) {
			res.Exit = true
		},
	},
}

func runGet(c *Console, args []string, res *Result) {
	if len(args) != 1 {
		res.Messages = append(res.Messages, "Usage: /get <currentStory|global.key|local.key>")
		return
	}
	key := args[0]
	value, found, err := c.target.Query(key)
	switch {
	case errors.Is(err, game.ErrQuerySyntax):
		res.Messages = append(res.Messages, fmt.Sprintf("Error: %v", err))
	case err != nil:
		res.Messages = append(res.Messages, fmt.Sprintf("Error: %v", err))
		c.log.Warn("console query failed", "path", key, "error", err)
	case !found:
		res.Messages = append(res.Messages, fmt.Sprintf("%s not found or not defined", key))
	default:
		res.Messages = append(res.Messages, value)
	}
}

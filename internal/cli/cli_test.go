package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storyA = `return {
  id = "a",
  on_load = function(ctx) ctx.state.runs = 0 end,
  select_condition = function(ctx) return ctx.state.runs < 3 end,
  run = function(ctx)
    ctx.state.runs = ctx.state.runs + 1
    local v = ctx.ui.select({ "x", "y", { text = "z", value = "z", disabled = true } }, { prompt = "Pick" })
    ctx.ui.text("a picked " .. tostring(v))
  end,
}
`

const storyB = `return {
  id = "b",
  on_load = function(ctx) ctx.state.runs = 0 end,
  select_condition = function(ctx) return ctx.state.runs < 2 end,
  run = function(ctx)
    ctx.state.runs = ctx.state.runs + 1
    ctx.game.queue_next_story("c")
    ctx.ui.text("b roll " .. ctx.rng.int(1, 6))
  end,
}
`

const storyC = `return {
  id = "c",
  select_condition = function(ctx) return false end,
  run = function(ctx)
    ctx.global.c_runs = (ctx.global.c_runs or 0) + 1
  end,
}
`

// writeStories creates a stories folder that plays exactly seven cycles.
func writeStories(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "stories")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, body := range map[string]string{
		"a.story.lua": storyA,
		"b.story.lua": storyB,
		"c.story.lua": storyC,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

type response[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var r response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &r), out)
	require.Equal(t, "ok", r.Status)
	return r.Data
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"play", "simulate", "stories", "inspect", "history"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "verbose", "debug", "seed", "discard", "stories", "save-dir", "journal"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitCommandError, "failed to load config", os.ErrNotExist)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, os.ErrNotExist)
	assert.Equal(t, "failed to load config: file does not exist", wrapped.Error())
}

func TestConfigFlagMissingFile(t *testing.T) {
	_, err := execute(t, "stories", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "stories", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_SameSeedSameTrace(t *testing.T) {
	stories := writeStories(t)
	args := []string{"simulate", "--stories", stories, "--seed", "42", "--format", "json"}

	out1, err := execute(t, args...)
	require.NoError(t, err)
	out2, err := execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)

	trace := decode[Trace](t, out1)
	assert.Equal(t, int64(42), trace.Seed)
	assert.Equal(t, StopExhausted, trace.Stopped)
	require.Len(t, trace.Cycles, 7)

	counts := map[string]int{}
	for i, c := range trace.Cycles {
		assert.Equal(t, i+1, c.Number)
		counts[c.Story]++
		if c.Story == "c" {
			assert.True(t, c.Queued, "c only runs from the queue")
			assert.Equal(t, "b", trace.Cycles[i-1].Story)
		}
	}
	assert.Equal(t, map[string]int{"a": 3, "b": 2, "c": 2}, counts)
	assert.Equal(t, trace.Cycles[len(trace.Cycles)-1].UsedCount, trace.Rng.UsedCount)
	assert.NotEmpty(t, findPrefix(trace.Transcript, "b roll "))
	for _, line := range trace.Transcript {
		assert.NotEqual(t, "a picked z", line, "disabled options are never picked")
	}
}

func findPrefix(lines []string, prefix string) string {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return l
		}
	}
	return ""
}

func TestSimulate_MaxCyclesAndText(t *testing.T) {
	stories := writeStories(t)
	out, err := execute(t, "simulate", "--stories", stories, "--seed", "7", "--max-cycles", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped: max-cycles after 2 cycles")
	assert.Contains(t, out, "rng seed=7")
}

func TestSimulate_LLMNeedsKey(t *testing.T) {
	_, err := execute(t, "simulate", "--stories", writeStories(t), "--llm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_MissingStoriesFolder(t *testing.T) {
	_, err := execute(t, "simulate", "--stories", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestStories(t *testing.T) {
	stories := writeStories(t)

	out, err := execute(t, "stories", "--stories", stories, "--format", "json")
	require.NoError(t, err)
	list := decode[StoryList](t, out)
	require.Len(t, list.Stories, 3)
	ids := []string{list.Stories[0].ID, list.Stories[1].ID, list.Stories[2].ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.True(t, list.Stories[0].OnLoad)
	assert.False(t, list.Stories[2].OnLoad)
	assert.Empty(t, list.Errors)

	out, err = execute(t, "stories", "--stories", stories)
	require.NoError(t, err)
	assert.Contains(t, out, "3 stories")
}

func TestStories_LoadErrors(t *testing.T) {
	stories := writeStories(t)
	require.NoError(t, os.WriteFile(filepath.Join(stories, "bad.story.lua"), []byte("return {"), 0644))

	out, err := execute(t, "stories", "--stories", stories)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 story files failed to load")
	assert.Contains(t, out, "3 stories")
	assert.Contains(t, out, "error: load ")
}

func TestInspect(t *testing.T) {
	stories := writeStories(t)
	saves := t.TempDir()

	_, err := execute(t, "simulate", "--stories", stories, "--save-dir", saves, "--seed", "3", "--save", "end.json")
	require.NoError(t, err)

	out, err := execute(t, "inspect", "--save-dir", saves, "end.json")
	require.NoError(t, err)
	assert.Contains(t, out, "current story: (none)")
	assert.Contains(t, out, "rng: seed=3")
	assert.Contains(t, out, "global: c_runs")
	assert.Contains(t, out, "a.story.lua")

	out, err = execute(t, "inspect", filepath.Join(saves, "end.json"), "global.c_runs", "global.missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "global.c_runs = 2")
	assert.Contains(t, out, "global.missing not found or not defined")

	_, err = execute(t, "inspect", filepath.Join(saves, "end.json"), "bogus.key")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "inspect", "--save-dir", saves, "nope.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory(t *testing.T) {
	stories := writeStories(t)
	db := filepath.Join(t.TempDir(), "journal.db")

	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "simulate", "--stories", stories, "--journal", db, "--seed", "11")
	require.NoError(t, err)

	out, err := execute(t, "history", "--journal", db, "--format", "json")
	require.NoError(t, err)
	type sessionJSON struct {
		ID      string `json:"id"`
		Command string `json:"command"`
		Seed    int64  `json:"seed"`
		Cycles  int    `json:"cycles"`
	}
	sessions := decode[[]sessionJSON](t, out)
	require.Len(t, sessions, 1)
	assert.Equal(t, "simulate", sessions[0].Command)
	assert.Equal(t, int64(11), sessions[0].Seed)
	assert.Equal(t, 7, sessions[0].Cycles)

	out, err = execute(t, "history", "--journal", db, sessions[0].ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "session "+sessions[0].ID)
	assert.Contains(t, out, "a.story.lua")

	out, err = execute(t, "history", "--journal", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 sessions")

	_, err = execute(t, "history", "--journal", db, "zzzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

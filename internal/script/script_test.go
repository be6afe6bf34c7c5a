package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/storyloop/internal/game"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

type selectCall struct {
	options []story.Option
	cfg     *story.SelectConfig
	// records as they were when the story suspended
	local story.Record
}

type recordingUI struct {
	data    *story.RunData
	answers []any
	err     error
	selects []selectCall
	texts   []string
}

func (u *recordingUI) Start(context.Context) error { return nil }
func (u *recordingUI) End(context.Context) error   { return nil }

func (u *recordingUI) UserSelect(_ context.Context, options []story.Option, cfg *story.SelectConfig) (any, error) {
	call := selectCall{options: options, cfg: cfg}
	if u.data != nil {
		call.local = u.data.Local.Clone()
	}
	u.selects = append(u.selects, call)
	if u.err != nil {
		return nil, u.err
	}
	if len(u.answers) == 0 {
		return options[0].Value, nil
	}
	a := u.answers[0]
	u.answers = u.answers[1:]
	return a, nil
}

func (u *recordingUI) Text(_ context.Context, text string) error {
	u.texts = append(u.texts, text)
	return u.err
}

type recordingDirector struct {
	known []string
	calls []string
}

func (d *recordingDirector) SetNextStory(id string) error {
	return d.record("set", id)
}

func (d *recordingDirector) QueueNextStory(id string) error {
	return d.record("queue", id)
}

func (d *recordingDirector) record(op, id string) error {
	for _, k := range d.known {
		if k == id {
			d.calls = append(d.calls, op+" "+id)
			return nil
		}
	}
	return fmt.Errorf("%s: unknown story %q", op, id)
}

func newRunData(logs *bytes.Buffer) (*story.RunData, *recordingUI, *recordingDirector) {
	ui := &recordingUI{}
	dir := &recordingDirector{known: []string{"counter"}}
	d := &story.RunData{
		Global: story.Record{},
		Local:  story.Record{},
		UI:     ui,
		Game:   dir,
		Logger: logging.New(logging.NewHandler(logs, slog.LevelDebug)),
		Rng:    rng.New(rng.WithSeed(11)),
	}
	ui.data = d
	return d, ui, dir
}

func loadFixture(t *testing.T, name string) story.Definition {
	t.Helper()
	ld := &Loader{Root: "testdata"}
	path := filepath.Join("testdata", "stories", name)
	def, err := ld.Load(path, ld.source(path))
	require.NoError(t, err)
	return def
}

func TestDiscover(t *testing.T) {
	ld := &Loader{Root: "testdata"}
	defs, errs := ld.Discover([]string{filepath.Join("testdata", "stories")})

	var ids, sources []string
	for _, def := range defs {
		ids = append(ids, def.ID)
		sources = append(sources, def.Source)
	}
	assert.Equal(t, []string{"counter", "seq", "dice"}, ids)
	assert.Equal(t, []string{
		"stories/counter.story.lua",
		"stories/nested/seq.story.lua",
		"stories/rng.story.lua",
	}, sources)

	require.Len(t, errs, 3)
	var failed []string
	for _, err := range errs {
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		failed = append(failed, loadErr.Source)
	}
	assert.Equal(t, []string{
		"stories/broken/missing.story.lua",
		"stories/broken/scalar.story.lua",
		"stories/broken/syntax.story.lua",
	}, failed)

	var defErr *story.DefinitionError
	require.True(t, errors.As(errs[0], &defErr))
	assert.Equal(t, []string{"run not provided"}, defErr.Reasons)
	assert.Contains(t, errs[1].Error(), "must return a table")
}

func TestDiscover_MissingRoot(t *testing.T) {
	ld := NewLoader()
	defs, errs := ld.Discover([]string{filepath.Join(t.TempDir(), "absent")})
	assert.Empty(t, defs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)
}

func TestDiscover_CustomMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`return {id="a", select_condition=function() return true end, run=function() end}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.story.lua"), []byte(`return 1`), 0644))

	ld := &Loader{Marker: ".lua", Root: dir}
	defs, errs := ld.Discover([]string{dir})
	require.Len(t, defs, 1)
	assert.Equal(t, "a.lua", defs[0].Source)
	assert.Len(t, errs, 1)
}

func TestLuaStory_Lifecycle(t *testing.T) {
	logs := &bytes.Buffer{}
	def := loadFixture(t, "counter.story.lua")
	assert.Equal(t, "counter", def.ID)
	assert.Equal(t, "stories/counter.story.lua", def.Source)
	require.NotNil(t, def.OnLoad)

	d, ui, _ := newRunData(logs)
	ui.answers = []any{"right"}

	require.NoError(t, def.OnLoad(context.Background(), d))
	assert.Equal(t, story.Record{"runs": 0}, d.Local)
	assert.Equal(t, story.Record{"visited": map[string]any{}}, d.Global)
	assert.True(t, def.SelectCondition(d))

	require.NoError(t, def.Run(context.Background(), d))
	require.Len(t, ui.selects, 1)
	call := ui.selects[0]
	assert.Equal(t, []story.Option{
		{Text: "left", Value: "left"},
		{Text: "Right", Value: "right"},
		{Text: "Up", Value: 3, Disabled: true},
	}, call.options)
	assert.Equal(t, &story.SelectConfig{Prompt: "Where?", TimeLimit: 1500 * time.Millisecond}, call.cfg)
	assert.Equal(t, story.Record{"runs": 1}, call.local, "records are written back before suspending")

	assert.Equal(t, []string{"You went right"}, ui.texts)
	assert.Equal(t, story.Record{"runs": 1, "choice": "right"}, d.Local)
	assert.Equal(t, "stories/counter.story.lua", d.Global["last"])
	assert.Contains(t, logs.String(), "counter ran")
	assert.Contains(t, logs.String(), "runs=1")

	d.Local["runs"] = 2
	assert.False(t, def.SelectCondition(d))
}

func TestLuaStory_SelectConditionDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.story.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return {
  id = "w",
  select_condition = function(ctx) ctx.state.touched = true; ctx.global.touched = true; return true end,
  run = function(ctx) end,
}`), 0644))
	def, err := (&Loader{Root: dir}).Load(path, "w.story.lua")
	require.NoError(t, err)

	d, _, _ := newRunData(&bytes.Buffer{})
	assert.True(t, def.SelectCondition(d))
	assert.Empty(t, d.Local)
	assert.Empty(t, d.Global)
}

func TestLuaStory_UIClosed(t *testing.T) {
	def := loadFixture(t, "counter.story.lua")
	d, ui, _ := newRunData(&bytes.Buffer{})
	require.NoError(t, def.OnLoad(context.Background(), d))
	ui.err = story.ErrUIClosed

	err := def.Run(context.Background(), d)
	assert.ErrorIs(t, err, story.ErrUIClosed)
	assert.Equal(t, story.Record{"runs": 1}, d.Local)
	assert.Empty(t, ui.texts)
}

func TestLuaStory_Director(t *testing.T) {
	def := loadFixture(t, filepath.Join("nested", "seq.story.lua"))
	assert.Equal(t, "stories/nested/seq.story.lua", def.Source)
	d, _, dir := newRunData(&bytes.Buffer{})

	assert.False(t, def.SelectCondition(d))
	require.NoError(t, def.Run(context.Background(), d))
	assert.Equal(t, []string{"set counter"}, dir.calls)
	assert.Equal(t, false, d.Local["queued"])
	assert.Contains(t, d.Local["queue_error"], `unknown story "missing"`)
}

func TestLuaStory_Rng(t *testing.T) {
	def := loadFixture(t, "rng.story.lua")
	d, _, _ := newRunData(&bytes.Buffer{})
	require.NoError(t, def.Run(context.Background(), d))

	roll, ok := d.Local.Int("roll")
	require.True(t, ok)
	assert.GreaterOrEqual(t, roll, 1)
	assert.LessOrEqual(t, roll, 6)
	assert.IsType(t, true, d.Local["flip"])
	assert.Contains(t, []any{"a", "b", "c"}, d.Local["pick"])
	assert.ElementsMatch(t, []any{1, 2, 3}, d.Local["order"])
	// int, bool, pick and a three element shuffle
	assert.Equal(t, uint64(5), d.Rng.Status().UsedCount)

	again, _, _ := newRunData(&bytes.Buffer{})
	require.NoError(t, def.Run(context.Background(), again))
	assert.Equal(t, d.Local, again.Local, "same seed, same story, same outcome")
}

func TestLuaStory_RngBadArguments(t *testing.T) {
	for name, call := range map[string]string{
		"negative max":    "ctx.rng.int(-5)",
		"min above max":   "ctx.rng.int(3, 1)",
		"empty pick":      "ctx.rng.pick({})",
		"zero bool total": "ctx.rng.bool(1, 0)",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "bad.story.lua")
			body := `return {
  id = "bad",
  select_condition = function() return true end,
  run = function(ctx) ctx.state.n = 1; ` + call + ` end,
}`
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			def, err := (&Loader{Root: dir}).Load(path, "bad.story.lua")
			require.NoError(t, err)

			d, _, _ := newRunData(&bytes.Buffer{})
			err = def.Run(context.Background(), d)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bad argument")
			assert.NotContains(t, err.Error(), "interface conversion")
			assert.Equal(t, story.Record{"n": 1}, d.Local, "state is written back")
		})
	}
}

func TestLuaStory_RngFullRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.story.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return {
  id = "wide",
  select_condition = function() return true end,
  run = function(ctx)
    local v = ctx.rng.int()
    ctx.state.exact = (v == math.floor(v))
    ctx.state.value = v
  end,
}`), 0644))
	def, err := (&Loader{Root: dir}).Load(path, "wide.story.lua")
	require.NoError(t, err)

	for seed := range int64(20) {
		d, _, _ := newRunData(&bytes.Buffer{})
		d.Rng = rng.New(rng.WithSeed(seed + 1))
		require.NoError(t, def.Run(context.Background(), d))
		assert.Equal(t, true, d.Local["exact"])
		v, ok := d.Local.Int("value")
		require.True(t, ok)
		assert.LessOrEqual(t, v, 1<<53)
		assert.GreaterOrEqual(t, v, -(1 << 53))
	}
}

func TestLuaStory_RunError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e.story.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return {
  id = "e",
  select_condition = function() return true end,
  run = function(ctx) ctx.state.before = 1; error("boom") end,
}`), 0644))
	def, err := (&Loader{Root: dir}).Load(path, "e.story.lua")
	require.NoError(t, err)

	d, _, _ := newRunData(&bytes.Buffer{})
	err = def.Run(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, story.Record{"before": 1}, d.Local)
}

func TestDiscoveredStoriesInGame(t *testing.T) {
	ui := &recordingUI{}
	ui.answers = []any{"left", "right"}
	logs := &bytes.Buffer{}
	g, err := game.New(game.Options{
		UI:          ui,
		StoriesDirs: []string{filepath.Join("testdata", "stories")},
		SaveDir:     t.TempDir(),
		Rng:         rng.New(rng.WithSeed(3)),
		Logger:      logging.New(logging.NewHandler(logs, slog.LevelDebug)),
		Discoverer:  &Loader{Root: "testdata"},
	})
	require.NoError(t, err)
	require.NoError(t, g.Init(context.Background()))
	require.Len(t, g.Stories(), 3)
	assert.Contains(t, logs.String(), "error loading story")

	require.NoError(t, g.QueueNextStory("seq"))
	require.NoError(t, g.Start(context.Background()))

	// seq forces counter; counter then runs until its condition fails.
	assert.Equal(t, []string{"You went left", "You went right"}, ui.texts)
	assert.Equal(t, "right", g.Local("stories/counter.story.lua")["choice"])
	assert.Equal(t, 2, g.Local("stories/counter.story.lua")["runs"])
	assert.NotNil(t, g.Local("stories/rng.story.lua")["roll"])
}

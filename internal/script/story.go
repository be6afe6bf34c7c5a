package script

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

// Registry keys of the story table and of the ctx table of the call in
// progress.
const (
	storyKey = "storyloop.story"
	ctxKey   = "storyloop.ctx"
)

// luaStory owns the Lua state of one story file. The game calls a story
// from one turn at a time, so the state is never used concurrently.
type luaStory struct {
	source string
	l      *lua.State

	// set for the duration of a callback
	ctx   context.Context
	data  *story.RunData
	abort error
}

func (s *luaStory) onLoad(ctx context.Context, d *story.RunData) error {
	_, err := s.call(ctx, d, "on_load", true)
	return err
}

// selectCondition never writes the records back.
func (s *luaStory) selectCondition(d *story.RunData) bool {
	ok, err := s.call(context.Background(), d, "select_condition", false)
	if err != nil {
		d.Logger.Error("select_condition failed", "source", s.source, "error", err)
		return false
	}
	return ok
}

func (s *luaStory) run(ctx context.Context, d *story.RunData) error {
	_, err := s.call(ctx, d, "run", true)
	return err
}

// call runs the named callback with a fresh ctx table and returns its result
// as a boolean.
func (s *luaStory) call(ctx context.Context, d *story.RunData, name string, writeBack bool) (bool, error) {
	l := s.l
	top := l.Top()
	s.ctx, s.data, s.abort = ctx, d, nil
	defer func() {
		l.SetTop(top)
		s.ctx, s.data = nil, nil
	}()

	l.Field(lua.RegistryIndex, storyKey)
	l.Field(-1, name)
	if !l.IsFunction(-1) {
		return false, nil
	}
	s.pushContext(d)
	l.PushValue(-1)
	l.SetField(lua.RegistryIndex, ctxKey)

	err := l.ProtectedCall(1, 1, 0)
	if writeBack {
		s.writeBack()
	}
	if s.abort != nil {
		return false, s.abort
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return l.ToBoolean(-1), nil
}

// writeBack copies the ctx records of the running call into the game's
// records. Fields that are no longer tables are left alone.
func (s *luaStory) writeBack() {
	if s.data == nil {
		return
	}
	l := s.l
	l.Field(lua.RegistryIndex, ctxKey)
	defer l.Pop(1)
	if !l.IsTable(-1) {
		return
	}

	l.Field(-1, "global")
	if l.IsTable(-1) && s.data.Global != nil {
		s.data.Global.Replace(tableToMap(l, -1))
	}
	l.Pop(1)
	l.Field(-1, "state")
	if l.IsTable(-1) && s.data.Local != nil {
		s.data.Local.Replace(tableToMap(l, -1))
	}
	l.Pop(1)
}

func (s *luaStory) pushContext(d *story.RunData) {
	l := s.l
	l.NewTable()

	goToLua(l, d.Global)
	l.SetField(-2, "global")
	goToLua(l, d.Local)
	l.SetField(-2, "state")

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "select", Function: s.uiSelect},
		{Name: "text", Function: s.uiText},
	}, 0)
	l.SetField(-2, "ui")

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "set_next_story", Function: s.setNextStory},
		{Name: "queue_next_story", Function: s.queueNextStory},
	}, 0)
	l.SetField(-2, "game")

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "error", Function: s.logAt(func(msg string, args ...any) { d.Logger.Error(msg, args...) })},
		{Name: "warn", Function: s.logAt(func(msg string, args ...any) { d.Logger.Warn(msg, args...) })},
		{Name: "info", Function: s.logAt(func(msg string, args ...any) { d.Logger.Info(msg, args...) })},
		{Name: "verbose", Function: s.logAt(func(msg string, args ...any) { d.Logger.Verbose(msg, args...) })},
		{Name: "debug", Function: s.logAt(func(msg string, args ...any) { d.Logger.Debug(msg, args...) })},
	}, 0)
	l.SetField(-2, "log")

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "int", Function: s.rngInt},
		{Name: "bool", Function: s.rngBool},
		{Name: "pick", Function: s.rngPick},
		{Name: "shuffle", Function: s.rngShuffle},
	}, 0)
	l.SetField(-2, "rng")
}

// fail stops the script with err. Errors from the UI also end the story
// call so the game sees them unchanged.
func (s *luaStory) fail(l *lua.State, err error, abort bool) int {
	if abort {
		s.abort = err
	}
	lua.Errorf(l, "%s", err.Error())
	return 0
}

// ui.select(options, config) returns the value of the chosen option.
// Options are strings or tables {text=, value=, disabled=}. Config fields
// are prompt, random_sort, preselected and time_limit (milliseconds).
func (s *luaStory) uiSelect(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	n := l.RawLength(1)
	if n == 0 {
		lua.ArgumentError(l, 1, "options must not be empty")
	}

	options := make([]story.Option, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(1, i)
		options = append(options, readOption(l, -1))
		l.Pop(1)
	}

	var cfg *story.SelectConfig
	if l.TypeOf(2) == lua.TypeTable {
		c := tableToMap(l, 2)
		cfg = &story.SelectConfig{Preselected: c["preselected"]}
		cfg.Prompt, _ = c["prompt"].(string)
		cfg.RandomSort, _ = c["random_sort"].(bool)
		switch ms := c["time_limit"].(type) {
		case int:
			cfg.TimeLimit = time.Duration(ms) * time.Millisecond
		case float64:
			cfg.TimeLimit = time.Duration(ms * float64(time.Millisecond))
		}
	}

	s.writeBack()
	value, err := s.data.UI.UserSelect(s.ctx, options, cfg)
	if err != nil {
		return s.fail(l, err, true)
	}
	goToLua(l, value)
	return 1
}

func readOption(l *lua.State, index int) story.Option {
	if l.TypeOf(index) != lua.TypeTable {
		text, _ := l.ToString(index)
		return story.Option{Text: text, Value: text}
	}
	m := tableToMap(l, index)
	opt := story.Option{Value: m["value"]}
	opt.Text, _ = m["text"].(string)
	opt.Disabled, _ = m["disabled"].(bool)
	if opt.Value == nil {
		opt.Value = opt.Text
	}
	return opt
}

func (s *luaStory) uiText(l *lua.State) int {
	text := lua.CheckString(l, 1)
	s.writeBack()
	if err := s.data.UI.Text(s.ctx, text); err != nil {
		return s.fail(l, err, true)
	}
	return 0
}

func (s *luaStory) setNextStory(l *lua.State) int {
	if err := s.data.Game.SetNextStory(lua.CheckString(l, 1)); err != nil {
		return s.fail(l, err, false)
	}
	return 0
}

func (s *luaStory) queueNextStory(l *lua.State) int {
	if err := s.data.Game.QueueNextStory(lua.CheckString(l, 1)); err != nil {
		return s.fail(l, err, false)
	}
	return 0
}

// logAt builds log.<level>(msg, attrs). Attributes are logged in key order.
func (s *luaStory) logAt(log func(msg string, args ...any)) lua.Function {
	return func(l *lua.State) int {
		msg := lua.CheckString(l, 1)
		attrs := tableToMap(l, 2)
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := []any{"source", s.source}
		for _, k := range keys {
			args = append(args, k, attrs[k])
		}
		log(msg, args...)
		return 0
	}
}

// Lua numbers are float64, so the no-argument form stays within the range
// they hold exactly.
const maxLuaInt = 1 << 53

// rng.int() in [-2^53,2^53], rng.int(max) in [0,max], rng.int(min,max) in
// [min,max].
func (s *luaStory) rngInt(l *lua.State) int {
	r := s.data.Rng
	switch l.Top() {
	case 0:
		l.PushNumber(float64(r.Between(-maxLuaInt, maxLuaInt)))
	case 1:
		hi := lua.CheckInteger(l, 1)
		if hi < 0 {
			lua.ArgumentError(l, 1, "max must not be negative")
		}
		l.PushInteger(int(r.Upto(int64(hi))))
	default:
		lo, hi := lua.CheckInteger(l, 1), lua.CheckInteger(l, 2)
		if lo > hi {
			lua.ArgumentError(l, 2, "max is lower than min")
		}
		l.PushInteger(int(r.Between(int64(lo), int64(hi))))
	}
	return 1
}

// rng.bool(chances, total) defaults to 50 in 100.
func (s *luaStory) rngBool(l *lua.State) int {
	chances := lua.OptInteger(l, 1, 50)
	total := lua.OptInteger(l, 2, 100)
	if total <= 0 {
		lua.ArgumentError(l, 2, "total must be positive")
	}
	l.PushBoolean(s.data.Rng.Chance(int64(chances), int64(total)))
	return 1
}

func (s *luaStory) rngPick(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	n := l.RawLength(1)
	if n == 0 {
		lua.ArgumentError(l, 1, "list must not be empty")
	}
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i + 1
	}
	l.RawGetInt(1, rng.Pick(s.data.Rng, indexes))
	return 1
}

func (s *luaStory) rngShuffle(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	n := l.RawLength(1)
	if n == 0 {
		lua.ArgumentError(l, 1, "list must not be empty")
	}
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i + 1
	}
	l.CreateTable(n, 0)
	for i, idx := range rng.Shuffle(s.data.Rng, indexes) {
		l.RawGetInt(1, idx)
		l.RawSetInt(-2, i+1)
	}
	return 1
}

package console

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/storyloop/internal/game"
	"github.com/tatianab/storyloop/internal/rng"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts *TokenizerOptions
		want []string
	}{
		{"basic", "this is a simple text", nil, []string{"this", "is", "a", "simple", "text"}},
		{"custom separator", "this-is-a-simple-text", &TokenizerOptions{Escape: '\\', Separator: '-', Joiner: '"'}, []string{"this", "is", "a", "simple", "text"}},
		{"multiple spaces", "this is  a   simple  text", nil, []string{"this", "is", "a", "simple", "text"}},
		{"trim", "  spaces  ", nil, []string{"spaces"}},
		{"empty", "", nil, []string{}},
		{"joined", `this "is a  simple" text`, nil, []string{"this", "is a  simple", "text"}},
		{"joined custom", `this-"is a--simple"-text`, &TokenizerOptions{Escape: '\\', Separator: '-', Joiner: '"'}, []string{"this", "is a--simple", "text"}},
		{"unclosed joiner", `this joiner " doesn't close`, nil, []string{"this", "joiner", `"`, "doesn't", "close"}},
		{"joiner separates", `joiner chars al"so sepa"rate`, nil, []string{"joiner", "chars", "al", "so sepa", "rate"}},
		{"empty joined", `empty "" joiner`, nil, []string{"empty", "", "joiner"}},
		{"escaped", `this "is a \"escaped" \\text`, nil, []string{"this", `is a "escaped`, `\text`}},
		{"escaped custom", `this-|is-a-^|escaped|--text`, &TokenizerOptions{Escape: '^', Separator: '-', Joiner: '|'}, []string{"this", "is-a-|escaped", "text"}},
		{"escape before end", `escape "before the\"" end`, nil, []string{"escape", `before the"`, "end"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.opts == nil {
				assert.Equal(t, tt.want, Tokenize(tt.text))
				return
			}
			assert.Equal(t, tt.want, tt.opts.Tokenize(tt.text))
		})
	}
}

func TestAutocomplete(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		options     []string
		completed   string
		suggestions []string
		exact       bool
	}{
		{"no options", "text", nil, "text", nil, false},
		{"no matches", "text", []string{"options", "dont", "match"}, "text", nil, false},
		{"empty text", "", []string{"options", "dont", "match"}, "", []string{"options", "dont", "match"}, false},
		{"common prefix", "m", []string{"match1", "match2", "notMatch"}, "match", []string{"match1", "match2"}, false},
		{"exact", "on", []string{"onlyMatch", "notMatch1", "notMatch2"}, "onlyMatch", nil, true},
		{"ignores case", "ONLY", []string{"onlyMatch"}, "onlyMatch", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completed, suggestions, exact := Autocomplete(tt.text, tt.options)
			assert.Equal(t, tt.completed, completed)
			assert.Equal(t, tt.suggestions, suggestions)
			assert.Equal(t, tt.exact, exact)
		})
	}
}

type fakeTarget struct {
	values map[string]string
	keys   map[string][]string
	saves  []string
	saved  []string
	loaded []string
	status rng.Status
}

func (f *fakeTarget) Query(path string) (string, bool, error) {
	if path == "bad" {
		return "", false, fmt.Errorf("%w: %q", game.ErrQuerySyntax, path)
	}
	v, ok := f.values[path]
	return v, ok, nil
}

func (f *fakeTarget) ValueList(scope string) []string {
	return f.keys[scope]
}

func (f *fakeTarget) SaveGame(name string) error {
	if name == "fail" {
		return errors.New("disk full")
	}
	f.saved = append(f.saved, name)
	f.saves = append(f.saves, name)
	sort.Strings(f.saves)
	return nil
}

func (f *fakeTarget) LoadGame(name string) error {
	f.loaded = append(f.loaded, name)
	return nil
}

func (f *fakeTarget) ListSaves() ([]string, error) {
	return f.saves, nil
}

func (f *fakeTarget) RngStatus() rng.Status {
	return f.status
}

func newConsole() (*Console, *fakeTarget) {
	target := &fakeTarget{
		values: map[string]string{"currentStory": "story-a", "global.gold": "12"},
		keys: map[string][]string{
			"global": {"gold", "gold_found", "hero"},
			"local":  {"runs"},
		},
		saves:  []string{"slot-1", "slot-2", "zeta"},
		status: rng.Status{Seed: 42, UsedCount: 7},
	}
	return New(target, nil), target
}

func TestExec(t *testing.T) {
	c, target := newConsole()

	tests := []struct {
		line string
		want []string
	}{
		{"hello", []string{"Syntax error. Try with /help"}},
		{"/nope", []string{"Unknown command nope"}},
		{`/echo one "two three"`, []string{"one two three"}},
		{"/get currentStory", []string{"story-a"}},
		{"/GET global.gold", []string{"12"}},
		{"/get global.silver", []string{"global.silver not found or not defined"}},
		{"/get bad", []string{`Error: query syntax error: "bad"`}},
		{"/get", []string{"Usage: /get <currentStory|global.key|local.key>"}},
		{"/save mine", []string{"Game saved to mine"}},
		{"/save fail", []string{"Error: disk full"}},
		{`/load "my slot"`, []string{"Game loaded from my slot"}},
		{"/saves", []string{"mine slot-1 slot-2 zeta"}},
		{"/status", []string{"rng seed=42 usedCount=7"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res := c.Exec(tt.line)
			assert.Equal(t, tt.want, res.Messages)
			assert.False(t, res.Exit)
		})
	}
	assert.Equal(t, []string{"mine"}, target.saved)
	assert.Equal(t, []string{"my slot"}, target.loaded)

	assert.True(t, c.Exec("  /exit").Exit)
	assert.Empty(t, c.Exec("   ").Messages)
}

func TestExec_Help(t *testing.T) {
	c, _ := newConsole()
	res := c.Exec("/help")
	require.NotEmpty(t, res.Messages)
	assert.Equal(t, "Available commands: /echo, /exit, /get, /help, /load, /save, /saves, /status", res.Messages[0])
	assert.Contains(t, res.Messages, "Console keys:")
}

func TestComplete(t *testing.T) {
	c, _ := newConsole()

	tests := []struct {
		line        string
		completed   string
		suggestions []string
	}{
		{"/he", "/help ", nil},
		{"/s", "/s", []string{"/save", "/saves", "/status"}},
		{"/sav", "/save", []string{"/save", "/saves"}},
		{"/x", "/x", nil},
		{"/get cur", "/get currentStory", nil},
		{"/get gl", "/get global.", []string{"gold", "gold_found", "hero"}},
		{"/get global.g", "/get global.gold", []string{"gold", "gold_found"}},
		{"/get global.h", "/get global.hero", nil},
		{"/get local.", "/get local.runs", nil},
		{"/get ", "/get ", []string{"currentStory", "local.", "global."}},
		{"/load sl", "/load slot-", []string{"slot-1", "slot-2"}},
		{"/save z", "/save zeta", nil},
		{"/echo something", "/echo something", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			completed, suggestions := c.Complete(tt.line)
			assert.Equal(t, tt.completed, completed)
			assert.Equal(t, tt.suggestions, suggestions)
		})
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	_, ok := h.Prev()
	assert.False(t, ok)

	for _, line := range []string{"/a", "/b", "/b", "/c", "/d"} {
		h.Add(line)
	}

	var seen []string
	for {
		line, _ := h.Prev()
		if len(seen) > 0 && seen[len(seen)-1] == line {
			break
		}
		seen = append(seen, line)
	}
	assert.Equal(t, []string{"/d", "/c", "/b"}, seen)

	line, ok := h.Next()
	assert.True(t, ok)
	assert.Equal(t, "/c", line)
	h.Next()
	line, ok = h.Next()
	assert.False(t, ok)
	assert.Empty(t, line)
}

package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tatianab/storyloop/internal/story"
)

// Query reads a dotted path for the debug console:
//
//	currentStory   id of the running story
//	global.<key>   JSON value of key in the global record
//	local.<key>    JSON value of key in the running story's local record
//
// Keys may themselves be dotted to reach into nested objects. A missing key
// reports found=false; an unknown prefix returns ErrQuerySyntax.
func (g *Game) Query(path string) (value string, found bool, err error) {
	g.turn.Lock()
	defer g.turn.Unlock()

	scope, key, hasKey := strings.Cut(strings.TrimSpace(path), ".")
	switch scope {
	case "currentStory":
		if hasKey {
			return "", false, fmt.Errorf("%w: %q", ErrQuerySyntax, path)
		}
		if g.current == nil {
			return "", false, nil
		}
		return g.current.ID(), true, nil
	case "global":
		return queryRecord(path, g.global, key)
	case "local":
		var rec story.Record
		if g.current != nil {
			rec = g.local[g.current.Source()]
		}
		return queryRecord(path, rec, key)
	}
	return "", false, fmt.Errorf("%w: %q", ErrQuerySyntax, path)
}

// Query reads a dotted path from a save file. It follows Game.Query, except
// that currentStory is the saved source and local keys may be prefixed with
// the source whose record they belong to.
func (f *SaveFile) Query(path string) (value string, found bool, err error) {
	scope, key, hasKey := strings.Cut(strings.TrimSpace(path), ".")
	switch scope {
	case "currentStory":
		if hasKey {
			return "", false, fmt.Errorf("%w: %q", ErrQuerySyntax, path)
		}
		return f.CurrentStory, f.CurrentStory != "", nil
	case "global":
		return queryRecord(path, f.Global, key)
	case "local":
		source, rest := f.splitSource(key)
		if source == "" {
			source = f.CurrentStory
		}
		return queryRecord(path, f.Local[source], rest)
	}
	return "", false, fmt.Errorf("%w: %q", ErrQuerySyntax, path)
}

// splitSource finds the longest saved source that key starts with.
func (f *SaveFile) splitSource(key string) (source, rest string) {
	rest = key
	for s := range f.Local {
		if len(s) <= len(source) {
			continue
		}
		if r, ok := strings.CutPrefix(key, s+"."); ok {
			source, rest = s, r
		}
	}
	return source, rest
}

func queryRecord(path string, rec map[string]any, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("%w: %q needs a key", ErrQuerySyntax, path)
	}
	v, ok := lookup(rec, key)
	if !ok {
		return "", false, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false, fmt.Errorf("encode %s: %w", path, err)
	}
	return string(data), true, nil
}

// lookup tries key as-is first, then walks it segment by segment.
func lookup(rec map[string]any, key string) (any, bool) {
	if rec == nil {
		return nil, false
	}
	if v, ok := rec[key]; ok {
		return v, true
	}
	head, rest, ok := strings.Cut(key, ".")
	if !ok {
		return nil, false
	}
	switch next := rec[head].(type) {
	case map[string]any:
		return lookup(next, rest)
	case story.Record:
		return lookup(next, rest)
	}
	return nil, false
}

// ValueList returns the sorted keys available under "global" or "local".
func (g *Game) ValueList(scope string) []string {
	g.turn.Lock()
	defer g.turn.Unlock()

	var rec story.Record
	switch scope {
	case "global":
		rec = g.global
	case "local":
		if g.current != nil {
			rec = g.local[g.current.Source()]
		}
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

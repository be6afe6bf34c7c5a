// Package script discovers story files on disk and turns them into story
// definitions backed by a Lua state.
//
// A story file returns a table:
//
//	return {
//	  id = "story-a",
//	  on_load = function(ctx) ctx.state.runs = 0 end,
//	  select_condition = function(ctx) return ctx.state.runs < 3 end,
//	  run = function(ctx)
//	    ctx.state.runs = ctx.state.runs + 1
//	    ctx.ui.text("Story A run " .. ctx.state.runs)
//	  end,
//	}
//
// Every callback receives a ctx table with global, state (the story's local
// record), ui, game, log and rng. The global SOURCE holds the story source.
package script

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/tatianab/storyloop/internal/story"
)

// DefaultMarker is the file name suffix of story files.
const DefaultMarker = ".story.lua"

// LoadError reports a story file that could not be turned into a definition.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader finds story files under a set of roots.
type Loader struct {
	// Marker is the file name suffix to load. Defaults to DefaultMarker.
	Marker string
	// Root is the folder sources are made relative to. Defaults to the
	// working directory.
	Root string
}

func NewLoader() *Loader {
	return &Loader{Marker: DefaultMarker, Root: "."}
}

// Discover walks every root recursively in lexical order. A file that fails
// to load is reported and skipped; the walk goes on.
func (ld *Loader) Discover(roots []string) ([]story.Definition, []error) {
	var (
		defs []story.Definition
		errs []error
	)
	for _, root := range roots {
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, &LoadError{Source: ld.source(path), Err: err})
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ld.marker()) {
				return nil
			}
			source := ld.source(path)
			def, err := ld.Load(path, source)
			if err != nil {
				errs = append(errs, &LoadError{Source: source, Err: err})
				return nil
			}
			defs = append(defs, def)
			return nil
		})
		if walkErr != nil {
			errs = append(errs, &LoadError{Source: ld.source(root), Err: walkErr})
		}
	}
	return defs, errs
}

// Load compiles the story file at path in a fresh Lua state.
func (ld *Loader) Load(path, source string) (story.Definition, error) {
	def := story.Definition{Source: source}

	l := lua.NewState()
	lua.OpenLibraries(l)
	l.PushString(source)
	l.SetGlobal("SOURCE")

	if err := lua.LoadFile(l, path, ""); err != nil {
		return def, fmt.Errorf("load lua: %w", err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return def, fmt.Errorf("run lua: %w", err)
	}
	if l.TypeOf(-1) != lua.TypeTable {
		return def, fmt.Errorf("story script must return a table, got %s", lua.TypeNameOf(l, -1))
	}
	l.PushValue(-1)
	l.SetField(lua.RegistryIndex, storyKey)

	l.Field(-1, "id")
	if l.TypeOf(-1) == lua.TypeString {
		def.ID, _ = l.ToString(-1)
	}
	l.Pop(1)

	s := &luaStory{source: source, l: l}
	if hasFunction(l, "on_load") {
		def.OnLoad = s.onLoad
	}
	if hasFunction(l, "select_condition") {
		def.SelectCondition = s.selectCondition
	}
	if hasFunction(l, "run") {
		def.Run = s.run
	}
	l.SetTop(0)

	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

// hasFunction checks a field of the table on top of the stack.
func hasFunction(l *lua.State, name string) bool {
	l.Field(-1, name)
	defer l.Pop(1)
	return l.IsFunction(-1)
}

func (ld *Loader) marker() string {
	if ld.Marker == "" {
		return DefaultMarker
	}
	return ld.Marker
}

// source is path relative to Root, with forward slashes so saves move
// between systems.
func (ld *Loader) source(path string) string {
	root := ld.Root
	if root == "" {
		root = "."
	}
	absRoot, err1 := filepath.Abs(root)
	absPath, err2 := filepath.Abs(path)
	if err1 == nil && err2 == nil {
		if rel, err := filepath.Rel(absRoot, absPath); err == nil && filepath.IsLocal(rel) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

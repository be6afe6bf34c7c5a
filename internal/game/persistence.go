package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

// SaveFile is the on-disk shape of a saved game. Local records are keyed by
// story source. Rng is informational; loading never restores it.
type SaveFile struct {
	CurrentStory string                  `json:"currentStory"`
	Local        map[string]story.Record `json:"local"`
	Global       story.Record            `json:"global"`
	Rng          *rng.Status             `json:"rng,omitempty"`
}

// Encode marshals the save file, indented in debug mode.
func (f *SaveFile) Encode(indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(f, "", "  ")
	}
	return json.Marshal(f)
}

// ReadSave parses the save file at path.
func ReadSave(path string) (*SaveFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f SaveFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	normalizeRecord(f.Global)
	for _, rec := range f.Local {
		normalizeRecord(rec)
	}
	return &f, nil
}

// normalizeRecord turns decoded numbers back into what stories stored:
// int for whole numbers, float64 otherwise.
func normalizeRecord(rec map[string]any) {
	for k, v := range rec {
		rec[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case map[string]any:
		normalizeRecord(v)
		return v
	case []any:
		for i := range v {
			v[i] = normalizeValue(v[i])
		}
		return v
	}
	return v
}

func (g *Game) savePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w %q", ErrInvalidSaveName, name)
	}
	return filepath.Join(g.saveDir, name), nil
}

// SaveGame writes the current state into name inside the save folder,
// creating the folder if needed.
func (g *Game) SaveGame(name string) error {
	g.turn.Lock()
	defer g.turn.Unlock()

	if err := g.saveGame(name); err != nil {
		g.log.Error("error saving the game", "file", name, "error", err)
		return err
	}
	g.log.Info("game saved", "file", name)
	return nil
}

func (g *Game) saveGame(name string) error {
	path, err := g.savePath(name)
	if err != nil {
		return err
	}

	status := g.rng.Status()
	f := &SaveFile{
		Local:  g.local,
		Global: g.global,
		Rng:    &status,
	}
	if g.current != nil {
		f.CurrentStory = g.current.Source()
	}
	data, err := f.Encode(g.debug)
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadGame replaces the global and local records with the content of name
// and resolves the saved current story by source. Nothing else is reset:
// OnLoad hooks do not run again, the queue and the engine are kept, and the
// records are not checked against what the stories expect. On failure the
// in-memory state is unchanged.
func (g *Game) LoadGame(name string) error {
	g.turn.Lock()
	defer g.turn.Unlock()

	path, err := g.savePath(name)
	if err == nil {
		var f *SaveFile
		if f, err = ReadSave(path); err == nil {
			g.restore(f)
		}
	}
	if err != nil {
		g.log.Error("error loading the game", "file", name, "error", err)
		return err
	}
	g.log.Info("game loaded", "file", name)
	return nil
}

func (g *Game) restore(f *SaveFile) {
	g.global = f.Global
	if g.global == nil {
		g.global = story.Record{}
	}
	g.local = f.Local
	if g.local == nil {
		g.local = make(map[string]story.Record)
	}
	if f.CurrentStory == "" {
		return
	}
	if s, ok := g.registry.BySource(f.CurrentStory); ok {
		g.current = s
	} else {
		g.log.Warn("saved current story is not loaded", "source", f.CurrentStory)
	}
}

// ListSaves returns the save file names, sorted.
func (g *Game) ListSaves() ([]string, error) {
	entries, err := os.ReadDir(g.saveDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	saves := []string{}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			saves = append(saves, entry.Name())
		}
	}
	sort.Strings(saves)
	return saves, nil
}

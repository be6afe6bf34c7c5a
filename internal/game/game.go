// Package game implements the orchestrator: it loads stories, repeatedly
// picks one to run (queued overrides first, then a random eligible one),
// and saves or restores the shared state.
//
// Exactly one story runs at a time. The turn lock is held from selection
// until the story returns, except while the story is suspended inside a UI
// call; that window is where the debug console may save, load or query.
package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

const (
	DefaultStoriesDir = "data/stories"
	DefaultSaveDir    = "data/save"
)

// Discoverer turns the configured story folders into definitions. Errors are
// per file; a failing file never prevents the others from loading.
type Discoverer interface {
	Discover(roots []string) ([]story.Definition, []error)
}

// Recorder is told about every cycle before its story runs.
type Recorder interface {
	Record(ctx context.Context, c Cycle) error
}

// Cycle describes one selection.
type Cycle struct {
	Number  int    `json:"number"`
	StoryID string `json:"storyId"`
	Source  string `json:"source"`
	Queued  bool   `json:"queued,omitempty"`
	// Rng is the engine status right after the selection draw.
	Rng rng.Status `json:"rng"`
}

type Options struct {
	UI          story.UI
	StoriesDirs []string
	SaveDir     string
	Debug       bool

	Rng        *rng.Rng
	Logger     *logging.Log
	Discoverer Discoverer
	// Builtins are compiled-in definitions registered after discovery.
	Builtins []story.Definition
	Recorder Recorder
}

// Validate reports every configuration problem at once.
func (o Options) Validate() error {
	var msgs []string
	if o.UI == nil {
		msgs = append(msgs, "UI not provided")
	}
	for _, dir := range o.StoriesDirs {
		if !isDir(dir) {
			msgs = append(msgs, fmt.Sprintf("Stories folder (%s) doesn't exist", dir))
		}
	}
	if o.SaveDir != "" && !isDir(o.SaveDir) {
		msgs = append(msgs, fmt.Sprintf("Savegames folder (%s) doesn't exist", o.SaveDir))
	}
	if len(msgs) > 0 {
		return &ConfigError{Messages: msgs}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

type Game struct {
	ui          story.UI
	storiesDirs []string
	saveDir     string
	debug       bool
	rng         *rng.Rng
	discoverer  Discoverer
	builtins    []story.Definition
	recorder    Recorder

	log      *logging.Log
	storyLog *logging.Log
	dataLog  *logging.Log

	turn     sync.Mutex
	registry *story.Registry
	queue    storyQueue
	global   story.Record
	local    map[string]story.Record
	current  *story.Story
	cycles   int
}

func New(opts Options) (*Game, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	g := &Game{
		ui:          opts.UI,
		storiesDirs: opts.StoriesDirs,
		saveDir:     opts.SaveDir,
		debug:       opts.Debug,
		rng:         opts.Rng,
		discoverer:  opts.Discoverer,
		builtins:    opts.Builtins,
		recorder:    opts.Recorder,
		registry:    story.NewRegistry(),
		global:      story.Record{},
		local:       make(map[string]story.Record),
	}
	if len(g.storiesDirs) == 0 {
		g.storiesDirs = []string{DefaultStoriesDir}
	}
	if g.saveDir == "" {
		g.saveDir = DefaultSaveDir
	}
	if g.rng == nil {
		g.rng = rng.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	g.log = logger.Named("game")
	g.storyLog = logger.Named("story")
	g.dataLog = logger.Named("data")
	return g, nil
}

// Rng is the engine shared by selection and the UI.
func (g *Game) Rng() *rng.Rng {
	return g.rng
}

// Run loads every story and plays until none is left to tell.
func (g *Game) Run(ctx context.Context) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	return g.Start(ctx)
}

// Init discovers the story files and registers them, followed by the
// builtins.
func (g *Game) Init(ctx context.Context) error {
	var defs []story.Definition
	if g.discoverer != nil {
		found, errs := g.discoverer.Discover(g.storiesDirs)
		for _, err := range errs {
			g.storyLog.Error("error loading story", "error", err)
		}
		defs = append(defs, found...)
	}
	defs = append(defs, g.builtins...)
	g.LoadStories(ctx, defs)
	return ctx.Err()
}

// LoadStories registers each definition and runs its OnLoad hook. Rejected
// definitions are logged and skipped. It returns how many were registered.
func (g *Game) LoadStories(ctx context.Context, defs []story.Definition) int {
	g.turn.Lock()
	defer g.turn.Unlock()

	n := 0
	for _, def := range defs {
		s, err := g.registry.Register(def)
		if err != nil {
			g.storyLog.Error("error loading story", "source", def.Source, "error", err)
			continue
		}
		n++
		g.local[s.Source()] = story.Record{}
		if err := s.Load(ctx, g.runData(s)); err != nil {
			g.storyLog.Error("story onLoad failed", "id", s.ID(), "error", err)
		}
		g.storyLog.Info("story loaded", "id", s.ID(), "source", s.Source())
	}
	return n
}

// Start drives the select-then-run cycle until no story is eligible and the
// queue is empty, the UI closes, or ctx is done.
func (g *Game) Start(ctx context.Context) error {
	g.log.Info("game starting")
	if err := g.ui.Start(ctx); err != nil {
		return fmt.Errorf("start ui: %w", err)
	}

	var err error
	for {
		if err = ctx.Err(); err != nil {
			break
		}
		var ran bool
		ran, err = g.Step(ctx)
		if err != nil || !ran {
			break
		}
	}

	g.log.Info("game ending", "cycles", g.Cycles())
	if endErr := g.ui.End(ctx); endErr != nil && err == nil {
		err = fmt.Errorf("end ui: %w", endErr)
	}
	if errors.Is(err, story.ErrUIClosed) {
		return nil
	}
	return err
}

// Step runs a single cycle. It returns false when there was nothing to run.
// A story failing is logged and does not stop the game; the UI closing or
// ctx ending does.
func (g *Game) Step(ctx context.Context) (bool, error) {
	g.turn.Lock()
	defer g.turn.Unlock()

	s, queued := g.selectStory()
	if s == nil {
		return false, nil
	}

	g.cycles++
	g.current = s
	defer func() { g.current = nil }()

	if g.recorder != nil {
		c := Cycle{Number: g.cycles, StoryID: s.ID(), Source: s.Source(), Queued: queued, Rng: g.rng.Status()}
		if err := g.recorder.Record(ctx, c); err != nil {
			g.log.Warn("recording cycle failed", "cycle", c.Number, "error", err)
		}
	}

	g.storyLog.Info("running story", "id", s.ID(), "queued", queued)
	err := s.Run(ctx, g.runData(s))
	switch {
	case err == nil:
	case errors.Is(err, story.ErrUIClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true, err
	default:
		g.storyLog.Error("story failed", "id", s.ID(), "error", err)
	}
	return true, nil
}

// selectStory pops the queue, or picks uniformly among the eligible stories.
// Queued stories skip their select condition.
func (g *Game) selectStory() (*story.Story, bool) {
	if s, ok := g.queue.pop(); ok {
		return s, true
	}

	var eligible []*story.Story
	for _, s := range g.registry.All() {
		if s.State() != story.Ready {
			continue
		}
		ok, err := s.Selectable(g.runData(s))
		if err != nil {
			g.storyLog.Error("story selectCondition failed", "id", s.ID(), "error", err)
		}
		if ok {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}
	return rng.Pick(g.rng, eligible), false
}

func (g *Game) runData(s *story.Story) *story.RunData {
	return &story.RunData{
		Global: g.global,
		Local:  g.localFor(s.Source()),
		UI:     turnUI{g: g, ui: g.ui},
		Game:   director{g: g},
		Logger: g.dataLog.With("story", s.ID()),
		Rng:    g.rng,
	}
}

// localFor returns the local record of source, creating it when a loaded
// save did not carry one.
func (g *Game) localFor(source string) story.Record {
	rec, ok := g.local[source]
	if !ok || rec == nil {
		rec = story.Record{}
		g.local[source] = rec
	}
	return rec
}

// SetNextStory replaces the queue with id. Stories use the Director in their
// RunData instead; this one takes the turn lock.
func (g *Game) SetNextStory(id string) error {
	g.turn.Lock()
	defer g.turn.Unlock()
	return director{g: g}.SetNextStory(id)
}

// QueueNextStory appends id to the queue, taking the turn lock.
func (g *Game) QueueNextStory(id string) error {
	g.turn.Lock()
	defer g.turn.Unlock()
	return director{g: g}.QueueNextStory(id)
}

// Current is the running story, or the one restored by LoadGame.
func (g *Game) Current() *story.Story {
	g.turn.Lock()
	defer g.turn.Unlock()
	return g.current
}

func (g *Game) Stories() []*story.Story {
	g.turn.Lock()
	defer g.turn.Unlock()
	return g.registry.All()
}

// Queue returns the ids waiting in the override queue.
func (g *Game) Queue() []string {
	g.turn.Lock()
	defer g.turn.Unlock()
	return g.queue.ids()
}

func (g *Game) Cycles() int {
	g.turn.Lock()
	defer g.turn.Unlock()
	return g.cycles
}

func (g *Game) RngStatus() rng.Status {
	return g.rng.Status()
}

// Global returns a copy of the global record.
func (g *Game) Global() story.Record {
	g.turn.Lock()
	defer g.turn.Unlock()
	return g.global.Clone()
}

// Local returns a copy of the local record of source.
func (g *Game) Local(source string) story.Record {
	g.turn.Lock()
	defer g.turn.Unlock()
	return g.local[source].Clone()
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tatianab/storyloop/internal/config"
	"github.com/tatianab/storyloop/internal/game"
	"github.com/tatianab/storyloop/internal/journal"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/narrator"
	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/script"
	"github.com/tatianab/storyloop/internal/story"
)

type setupOptions struct {
	// Command names the session in the journal.
	Command string
	// LogOut receives the log besides the configured log file, if any.
	LogOut io.Writer
	MakeUI func(r *rng.Rng, log *logging.Log) (story.UI, error)
	// Generator registers the narrator interlude when set.
	Generator narrator.Generator
	Recorders []game.Recorder
}

// session is everything a command needs to run a game.
type session struct {
	cfg  *config.Config
	log  *logging.Log
	rng  *rng.Rng
	ui   story.UI
	game *game.Game
	// journal is nil unless a journal file is configured.
	journal *journal.Session

	closers []func() error
}

func newSession(ctx context.Context, cfg *config.Config, opts setupOptions) (_ *session, err error) {
	s := &session{cfg: cfg}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	level, err := cfg.Level()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	var writers []io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		s.closers = append(s.closers, f.Close)
		writers = append(writers, f)
	}
	if opts.LogOut != nil {
		writers = append(writers, opts.LogOut)
	}
	s.log = logging.New(logging.NewHandler(io.MultiWriter(writers...), level))

	s.rng = rng.New(rng.WithSeed(cfg.Seed), rng.WithDiscard(cfg.Discard))
	s.log.Info("rng ready", "seed", s.rng.Status().Seed, "discard", cfg.Discard)

	s.ui, err = opts.MakeUI(s.rng, s.log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create ui", err)
	}

	recs := append([]game.Recorder(nil), opts.Recorders...)
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		s.closers = append(s.closers, j.Close)
		s.journal, err = j.NewSession(ctx, opts.Command, s.rng.Status().Seed)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to start journal session", err)
		}
		s.log.Info("journal session started", "id", s.journal.ID)
		recs = append(recs, s.journal)
	}

	var builtins []story.Definition
	if opts.Generator != nil {
		builtins = append(builtins, narrator.Interlude(opts.Generator))
	}

	s.game, err = game.New(game.Options{
		UI:          s.ui,
		StoriesDirs: cfg.StoriesDirs,
		SaveDir:     saveDirOption(cfg.SaveDir),
		Debug:       cfg.Debug,
		Rng:         s.rng,
		Logger:      s.log,
		Discoverer:  script.NewLoader(),
		Builtins:    builtins,
		Recorder:    fanOut(recs),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid game configuration", err)
	}
	return s, nil
}

// saveDirOption leaves the default save folder unchecked: SaveGame creates
// it on first use.
func saveDirOption(dir string) string {
	if filepath.Clean(dir) == filepath.Clean(game.DefaultSaveDir) {
		return ""
	}
	return dir
}

// finish marks the journal session as ended.
func (s *session) finish(ctx context.Context) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Finish(ctx); err != nil {
		s.log.Warn("finishing journal session failed", "error", err)
	}
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// openGenerator connects to Gemini, or returns nil when no key is set.
func openGenerator(ctx context.Context, cfg *config.Config) (*narrator.Gemini, error) {
	if !cfg.HasGemini() {
		return nil, nil
	}
	gem, err := narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("connect to gemini: %w", err)
	}
	return gem, nil
}

type recorders []game.Recorder

func fanOut(rs []game.Recorder) game.Recorder {
	switch len(rs) {
	case 0:
		return nil
	case 1:
		return rs[0]
	}
	return recorders(rs)
}

func (rs recorders) Record(ctx context.Context, c game.Cycle) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.Record(ctx, c))
	}
	return errors.Join(errs...)
}

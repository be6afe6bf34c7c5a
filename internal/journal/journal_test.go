package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/storyloop/internal/game"
	"github.com/tatianab/storyloop/internal/rng"
)

func openTempJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, j.Close())
	})
	return j
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestSession_RecordAndCycles(t *testing.T) {
	j := openTempJournal(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := j.NewSession(ctx, "simulate", 42)
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)

	require.NoError(t, s.Record(ctx, game.Cycle{Number: 1, StoryID: "index", Source: "index.story.lua", Rng: rng.Status{Seed: 42, UsedCount: 1}}))
	now = now.Add(time.Second)
	require.NoError(t, s.Record(ctx, game.Cycle{Number: 2, StoryID: "seq-2", Source: "seq/2.story.lua", Queued: true, Rng: rng.Status{Seed: 42, UsedCount: 1}}))

	cycles, err := j.Cycles(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "index", cycles[0].StoryID)
	assert.False(t, cycles[0].Queued)
	assert.Equal(t, now.Add(-time.Second), cycles[0].At)
	assert.Equal(t, game.Cycle{Number: 2, StoryID: "seq-2", Source: "seq/2.story.lua", Queued: true, Rng: rng.Status{Seed: 42, UsedCount: 1}}, cycles[1].Cycle)

	err = s.Record(ctx, game.Cycle{Number: 2, StoryID: "again"})
	require.Error(t, err, "cycle numbers are unique per session")
	require.Error(t, s.Record(ctx, game.Cycle{Number: 3}))
}

func TestSessions_NewestFirst(t *testing.T) {
	j := openTempJournal(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := j.NewSession(ctx, "play", 1)
	require.NoError(t, err)
	require.NoError(t, first.Record(ctx, game.Cycle{Number: 1, StoryID: "a", Source: "a"}))
	require.NoError(t, first.Finish(ctx))

	now = now.Add(time.Minute)
	second, err := j.NewSession(ctx, "simulate", 2)
	require.NoError(t, err)

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, "simulate", sessions[0].Command)
	assert.True(t, sessions[0].EndedAt.IsZero())
	assert.Equal(t, 0, sessions[0].Cycles)

	assert.Equal(t, first.ID, sessions[1].ID)
	assert.Equal(t, int64(1), sessions[1].Seed)
	assert.Equal(t, 1, sessions[1].Cycles)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), sessions[1].StartedAt)
	assert.False(t, sessions[1].EndedAt.IsZero())
}

func TestResolve(t *testing.T) {
	j := openTempJournal(t)
	ctx := context.Background()

	s, err := j.NewSession(ctx, "play", 1)
	require.NoError(t, err)

	id, err := j.Resolve(ctx, s.ID[:13])
	require.NoError(t, err)
	assert.Equal(t, s.ID, id)

	_, err = j.Resolve(ctx, "ffffffff")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = j.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	for _, id := range []string{"abc-1", "abc-2"} {
		_, err := j.db.Exec(`INSERT INTO sessions (id, command, seed, started_at) VALUES (?, 'play', 0, 0)`, id)
		require.NoError(t, err)
	}
	_, err = j.Resolve(ctx, "abc")
	assert.ErrorIs(t, err, ErrAmbiguousSession)
	id, err = j.Resolve(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", id)
}

func TestJournal_AsRecorder(t *testing.T) {
	j := openTempJournal(t)
	ctx := context.Background()
	s, err := j.NewSession(ctx, "simulate", 9)
	require.NoError(t, err)

	var rec game.Recorder = s
	require.NoError(t, rec.Record(ctx, game.Cycle{Number: 1, StoryID: "x", Source: "x.story.lua"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, rec.Record(cancelled, game.Cycle{Number: 2, StoryID: "x"}), context.Canceled)
	_, err = j.Sessions(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

// Package journal keeps a SQLite record of play sessions and of every cycle
// the game ran in them, so a seeded run can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tatianab/storyloop/internal/game"
)

//go:embed schema.sql
var schema string

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAmbiguousSession = errors.New("session prefix matches more than one session")
)

// Journal is a SQLite-backed session store.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates, if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session is one recorded run of the game.
type Session struct {
	ID      string
	Command string
	Seed    int64

	j *Journal
}

// NewSession starts a session for the given command and RNG seed.
func (j *Journal) NewSession(ctx context.Context, command string, seed int64) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
INSERT INTO sessions (id, command, seed, started_at)
VALUES (?, ?, ?, ?)
`, id.String(), command, seed, j.now().UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &Session{ID: id.String(), Command: command, Seed: seed, j: j}, nil
}

// Record stores a cycle. It satisfies game.Recorder.
func (s *Session) Record(ctx context.Context, c game.Cycle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.j == nil {
		return fmt.Errorf("session is not open")
	}
	if c.StoryID == "" {
		return fmt.Errorf("cycle %d has no story", c.Number)
	}

	_, err := s.j.db.ExecContext(ctx, `
INSERT INTO cycles (session_id, number, story_id, source, queued, seed, used_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		s.ID,
		c.Number,
		c.StoryID,
		c.Source,
		boolToInt(c.Queued),
		c.Rng.Seed,
		int64(c.Rng.UsedCount),
		s.j.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// Finish marks the session as ended.
func (s *Session) Finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.j.db.ExecContext(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ?`, s.j.now().UTC().UnixMilli(), s.ID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Seed      int64     `json:"seed"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
	Cycles    int       `json:"cycles"`
}

// Sessions lists every session, newest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT s.id, s.command, s.seed, s.started_at, s.ended_at, COUNT(c.number)
FROM sessions s
LEFT JOIN cycles c ON c.session_id = s.id
GROUP BY s.id
ORDER BY s.started_at DESC, s.id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			info    SessionInfo
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&info.ID, &info.Command, &info.Seed, &started, &ended, &info.Cycles); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.StartedAt = time.UnixMilli(started).UTC()
		if ended.Valid {
			info.EndedAt = time.UnixMilli(ended.Int64).UTC()
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Resolve expands a unique session id prefix into the full id.
func (j *Journal) Resolve(ctx context.Context, prefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrSessionNotFound
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id FROM sessions WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate session ids: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousSession, prefix)
	}
}

// CycleRecord is a stored game.Cycle.
type CycleRecord struct {
	game.Cycle
	At time.Time `json:"at"`
}

// Cycles returns the cycles of a session in the order they ran.
func (j *Journal) Cycles(ctx context.Context, sessionID string) ([]CycleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT number, story_id, source, queued, seed, used_count, created_at
FROM cycles
WHERE session_id = ?
ORDER BY number ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var (
			rec       CycleRecord
			queued    int
			usedCount int64
			created   int64
		)
		if err := rows.Scan(&rec.Number, &rec.StoryID, &rec.Source, &queued, &rec.Rng.Seed, &usedCount, &created); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		rec.Queued = queued != 0
		rec.Rng.UsedCount = uint64(usedCount)
		rec.At = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return out, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

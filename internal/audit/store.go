// Package audit keeps a durable record of every tool invocation.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fractalmind-ai/codeteam/internal/tools"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so created_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Invocation is one persisted tool call.
type Invocation struct {
	ID          string
	Session     string
	Agent       string
	Tool        string
	Args        string
	Outcome     string
	OutputBytes int
	Duration    time.Duration
	Time        time.Time
}

// Store persists invocations in SQLite.
type Store struct {
	db      *sql.DB
	session string
}

var _ tools.Recorder = (*Store)(nil)

// OpenStore opens or creates a SQLite store at the given path. Invocations
// recorded through the tools.Recorder interface are tagged with session.
func OpenStore(path, session string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, session: session}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record implements tools.Recorder.
func (s *Store) Record(ctx context.Context, inv tools.Invocation) error {
	return s.Insert(ctx, Invocation{
		Session:     s.session,
		Agent:       inv.Agent,
		Tool:        inv.Tool,
		Args:        inv.Args,
		Outcome:     inv.Outcome,
		OutputBytes: inv.OutputBytes,
		Duration:    inv.Duration,
		Time:        inv.Time,
	})
}

// Insert stores one invocation, assigning an ID and time when missing.
func (s *Store) Insert(ctx context.Context, inv Invocation) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is nil")
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Time.IsZero() {
		inv.Time = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO invocations(id,session,agent,tool,args,outcome,output_bytes,duration_ms,created_at) VALUES(?,?,?,?,?,?,?,?,?)",
		inv.ID, inv.Session, inv.Agent, inv.Tool, inv.Args, inv.Outcome, inv.OutputBytes,
		inv.Duration.Milliseconds(), inv.Time.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert invocation: %w", err)
	}
	return nil
}

// Recent returns up to limit invocations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Invocation, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id,session,agent,tool,args,outcome,output_bytes,duration_ms,created_at FROM invocations ORDER BY created_at DESC, seq DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var durationMS int64
		var created string
		if err := rows.Scan(&inv.ID, &inv.Session, &inv.Agent, &inv.Tool, &inv.Args, &inv.Outcome, &inv.OutputBytes, &durationMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		ts, err := time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("invalid invocation time %q: %w", created, err)
		}
		inv.Time = ts
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS invocations (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	session TEXT NOT NULL,
	agent TEXT NOT NULL,
	tool TEXT NOT NULL,
	args TEXT NOT NULL,
	outcome TEXT NOT NULL,
	output_bytes INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_session ON invocations(session);
`); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

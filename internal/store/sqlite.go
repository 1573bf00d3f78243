package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// CourseStore keeps course outlines in a local SQLite file. It implements
// remote.Store so the CLI and TUI can work without a server, and backs the
// `studio serve` HTTP API.
type CourseStore struct {
	path  string
	db    *sql.DB
	actor string
	now   func() time.Time
	log   *zap.Logger
}

type Option func(*CourseStore)

// WithActor sets the user recorded in edited_by / published_by.
func WithActor(actor string) Option {
	return func(s *CourseStore) { s.actor = strings.TrimSpace(actor) }
}

func WithClock(now func() time.Time) Option {
	return func(s *CourseStore) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CourseStore) { s.log = l }
}

// Open opens (and migrates) the store at path, creating parent directories.
func Open(ctx context.Context, path string, opts ...Option) (*CourseStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "store: create db dir")
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "store: open sqlite")
	}
	// WAL lets the TUI read while `studio serve` or another CLI call writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "store: %s", p)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &CourseStore{
		path:  path,
		db:    db,
		actor: "studio",
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *CourseStore) Path() string { return s.path }

func (s *CourseStore) Close() error { return s.db.Close() }

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			category TEXT NOT NULL,
			display_name TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_parent ON blocks(parent_id, position);`,
		`INSERT OR IGNORE INTO meta(k, v) VALUES('schema_version', '1');`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "store: migrate")
		}
	}
	return nil
}

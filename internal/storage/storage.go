// Package storage provides the SQLite-backed persistence layer for
// threads, messages, conversation contexts, the audit trail, and indexed
// guideline chunks. A single connection with a busy timeout serializes
// writes; WAL keeps reads cheap.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/careline/internal/types"
)

// Compile-time interface compliance checks.
var _ types.ThreadStore = (*Store)(nil)
var _ types.MessageStore = (*Store)(nil)
var _ types.ContextStore = (*Store)(nil)
var _ types.AuditStore = (*Store)(nil)
var _ types.ChunkStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	sender TEXT NOT NULL,
	status TEXT NOT NULL,
	urgency TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_message_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_threads_sender ON threads(sender, created_at);
CREATE INDEX IF NOT EXISTS idx_threads_expiry ON threads(status, expires_at);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	direction TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	confidence REAL,
	manual INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(direction, status);

CREATE TABLE IF NOT EXISTS contexts (
	thread_id TEXT PRIMARY KEY REFERENCES threads(id) ON DELETE CASCADE,
	turns TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	last_updated INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	actor_id TEXT,
	thread_id TEXT,
	details TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_synced ON audit_log(synced, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_thread ON audit_log(thread_id, created_at);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	source TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// Store wraps a SQLite database implementing every persistence interface
// the gateway consumes.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database in dataDir and applies the schema.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "careline.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" and gives the
	// per-key write serialization the pipeline relies on.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

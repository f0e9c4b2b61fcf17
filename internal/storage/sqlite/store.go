package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"classwork/internal/realtime"
	"classwork/internal/storage"
)

// Store wraps access to the SQLite database and publishes committed changes
// to the realtime hub.
type Store struct {
	*queries

	db     *sqlx.DB
	hub    *realtime.Hub
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open initializes a new SQLite store and runs the required migrations.
// A nil hub gets a private one, so subscriptions still see local writes.
func Open(dbPath string, hub *realtime.Hub, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = realtime.NewHub(logger)
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_loc=UTC", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, hub: hub, logger: logger}
	s.queries = &queries{db: conn, record: s.publish}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn in a transaction and publishes its changes after commit.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var changes []realtime.Change
	q := &queries{db: tx, record: func(c realtime.Change) { changes = append(changes, c) }}
	if err := fn(q); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.hub.Publish(changes...)
	return nil
}

func (s *Store) publish(c realtime.Change) {
	s.hub.Publish(c)
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Cascades are done explicitly by the lifecycle manager, so the schema
// declares no foreign keys.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            role TEXT NOT NULL,
            lecturer_id TEXT,
            created_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);`,
		`CREATE TABLE IF NOT EXISTS projects (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            deadline DATETIME NOT NULL,
            created_by TEXT NOT NULL,
            status TEXT NOT NULL,
            grade REAL,
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_projects_created_by ON projects(created_by);`,
		`CREATE TABLE IF NOT EXISTS project_assignees (
            project_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            PRIMARY KEY (project_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_project_assignees_user ON project_assignees(user_id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            parent_id TEXT,
            title TEXT NOT NULL,
            status TEXT NOT NULL,
            created_by TEXT NOT NULL,
            due_date DATETIME,
            grade REAL,
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS comments (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            user_name TEXT NOT NULL,
            user_image TEXT,
            text TEXT NOT NULL,
            created_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS activity_logs (
            id TEXT PRIMARY KEY,
            project_id TEXT,
            task_id TEXT,
            user_id TEXT NOT NULL,
            action TEXT NOT NULL,
            created_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_activity_project ON activity_logs(project_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

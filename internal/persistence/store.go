// Package persistence records runs, their tasks and agent invocations in
// SQLite, so finished runs can be inspected after the fact.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath, enabling WAL mode and
// foreign keys.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc.org/sqlite needs the pragma, not a connection-string flag.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewMemoryStore creates an in-memory store for tests.
func NewMemoryStore(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new run in status created.
func (s *Store) CreateRun(ctx context.Context, runID, repoURL, branch, request string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, repo_url, branch, request, status) VALUES (?, ?, ?, ?, 'created')`,
		runID, repoURL, branch, request)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", runID, err)
	}
	return nil
}

// UpdateRunStatus records a run state transition.
func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records the terminal status and finish time of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// TaskRecord is the persisted state of one task within a run.
type TaskRecord struct {
	RunID    string
	TaskID   string
	Title    string
	Category string
	Priority string
	Status   string
	Attempts int
	Notes    []string
}

// SaveTask inserts or replaces a task record.
func (s *Store) SaveTask(ctx context.Context, rec TaskRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_tasks (run_id, task_id, title, category, priority, status, attempts, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, task_id) DO UPDATE SET
		   status = excluded.status, attempts = excluded.attempts, notes = excluded.notes`,
		rec.RunID, rec.TaskID, rec.Title, rec.Category, rec.Priority,
		rec.Status, rec.Attempts, strings.Join(rec.Notes, "\n"))
	if err != nil {
		return fmt.Errorf("saving task %s/%s: %w", rec.RunID, rec.TaskID, err)
	}
	return nil
}

// ListTasks returns all task records of a run in task-id order.
func (s *Store) ListTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, task_id, title, category, priority, status, attempts, notes
		 FROM run_tasks WHERE run_id = ? ORDER BY task_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var notes string
		if err := rows.Scan(&rec.RunID, &rec.TaskID, &rec.Title, &rec.Category,
			&rec.Priority, &rec.Status, &rec.Attempts, &notes); err != nil {
			return nil, fmt.Errorf("scanning task record: %w", err)
		}
		if notes != "" {
			rec.Notes = strings.Split(notes, "\n")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordInvocation appends one agent invocation outcome.
func (s *Store) RecordInvocation(ctx context.Context, runID, taskID string, chunkIndex, attempts int, outcome string, latency time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (run_id, task_id, chunk_index, attempts, outcome, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, taskID, chunkIndex, attempts, outcome, latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording invocation %s/%s/%d: %w", runID, taskID, chunkIndex, err)
	}
	return nil
}

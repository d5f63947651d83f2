package persistence

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	repo_url    TEXT NOT NULL,
	branch      TEXT NOT NULL DEFAULT '',
	request     TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS run_tasks (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	task_id  TEXT NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	notes    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, task_id)
);

CREATE TABLE IF NOT EXISTS invocations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	task_id     TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	attempts    INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	latency_ms  INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_run_tasks_run ON run_tasks(run_id);
CREATE INDEX IF NOT EXISTS idx_invocations_run ON invocations(run_id, task_id);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tverenko/flowboard/internal/model"
)

// SQLiteStore persists the collection in a tasks table. Each Save replaces
// the table contents in one transaction so the snapshot is always whole.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on top of an opened, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save replaces the persisted collection with tasks.
func (s *SQLiteStore) Save(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for _, t := range tasks {
		depsJSON, err := json.Marshal(t.DependsOn)
		if err != nil {
			return fmt.Errorf("marshal depends_on: %w", err)
		}
		historyJSON, err := json.Marshal(t.History)
		if err != nil {
			return fmt.Errorf("marshal history: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO tasks(id, title, description, stage, created_at, code_snippet, depends_on_json, history_json, review_notes, retry_count)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, string(t.Stage), t.CreatedAt.UTC().Format(time.RFC3339Nano),
			t.CodeSnippet, string(depsJSON), string(historyJSON), t.ReviewNotes, t.RetryCount)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted collection back.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, stage, created_at, code_snippet, depends_on_json, history_json, review_notes, retry_count FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var (
			t           model.Task
			stage       string
			createdAt   string
			depsJSON    string
			historyJSON string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &stage, &createdAt, &t.CodeSnippet, &depsJSON, &historyJSON, &t.ReviewNotes, &t.RetryCount); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Stage, err = model.ParseStage(stage)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("task %s: parse created_at: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(depsJSON), &t.DependsOn); err != nil {
			return nil, fmt.Errorf("task %s: parse depends_on: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(historyJSON), &t.History); err != nil {
			return nil, fmt.Errorf("task %s: parse history: %w", t.ID, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	return out, nil
}

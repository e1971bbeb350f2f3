// Package tasks persists task records and executes them against the LLM.
package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmgilman/go/errors"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/fcagent/pkg/models"
)

const createTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	input TEXT,
	result TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_time ON tasks(user_id, created_at);
`

// Store is a SQLite-backed task table.
type Store struct {
	db *sql.DB
}

// Open creates a Store and runs auto-migration.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tasks db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tasks db: %w", err)
	}

	return &Store{db: db}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a pending task and returns its ID.
func (s *Store) Create(ctx context.Context, userID, taskType string, input any) (int64, error) {
	if userID == "" {
		return 0, errors.New(errors.CodeInvalidInput, "user id is required")
	}
	if taskType == "" {
		return 0, errors.New(errors.CodeInvalidInput, "task type is required")
	}

	data, err := json.Marshal(input)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidInput, "encode task input")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, type, status, input, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, taskType, models.TaskPending, string(data), time.Now().UTC(),
	)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabase, "create task")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabase, "create task")
	}
	return id, nil
}

// UpdateStatus sets the status and result of a task and stamps completed_at.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status models.TaskStatus, result any) error {
	if !status.Valid() {
		return errors.WithContextMap(
			errors.Newf(errors.CodeInvalidInput, "invalid task status %q", status),
			map[string]interface{}{"taskId": id},
		)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "encode task result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		status, string(data), time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "update task status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "update task status")
	}
	if n == 0 {
		return errors.WithContextMap(
			errors.Newf(errors.CodeNotFound, "task %d not found", id),
			map[string]interface{}{"taskId": id},
		)
	}
	return nil
}

// List returns a page of a user's tasks, newest first, and the total count.
// Input and result payloads are omitted.
func (s *Store) List(ctx context.Context, userID string, limit, offset int) ([]models.Task, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, status, created_at, completed_at
		 FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabase, "list tasks")
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		var completed sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Status, &t.CreatedAt, &completed); err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabase, "scan task")
		}
		if completed.Valid {
			t.CompletedAt = &completed.Time
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabase, "list tasks")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabase, "count tasks")
	}
	return tasks, total, nil
}

// Get returns one task owned by userID.
func (s *Store) Get(ctx context.Context, id int64, userID string) (models.Task, error) {
	var t models.Task
	var input, result sql.NullString
	var completed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, status, input, result, created_at, completed_at
		 FROM tasks WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Type, &t.Status, &input, &result, &t.CreatedAt, &completed)
	if err == sql.ErrNoRows {
		return models.Task{}, errors.WithContextMap(
			errors.Newf(errors.CodeNotFound, "task %d not found", id),
			map[string]interface{}{"taskId": id},
		)
	}
	if err != nil {
		return models.Task{}, errors.Wrap(err, errors.CodeDatabase, "get task")
	}

	t.Input = rawJSON(input)
	t.Result = rawJSON(result)
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return t, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rawJSON passes stored JSON through, quoting it as a string when the
// column holds something that does not parse.
func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	if json.Valid([]byte(s.String)) {
		return json.RawMessage(s.String)
	}
	quoted, _ := json.Marshal(s.String)
	return quoted
}

// Package sqlite provides a SQLite-backed implementation of directory.Store
// using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Ensure Store implements directory.Store.
var _ directory.Store = (*Store)(nil)

// Store implements directory.Store using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the foreign_keys pragma in effect for every
	// statement and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(r directory.Reader) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	return fn(&tx{q: sqlTx, now: s.now})
}

// Update runs fn inside a transaction and commits it if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(t directory.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{q: sqlTx, now: s.now}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClaimTasks marks up to limit available tasks as running and returns them.
// Running tasks not touched for lease are claimed again.
func (s *Store) ClaimTasks(ctx context.Context, limit int, lease time.Duration) ([]directory.Task, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := s.now()
	expiredBefore := int64(math.MinInt64)
	if lease > 0 {
		expiredBefore = now.Add(-lease).UnixNano()
	}
	tasks, err := queryTasks(ctx, sqlTx, `
		SELECT `+taskColumns+` FROM outbox_tasks
		WHERE (status = ? AND available_at <= ?)
		   OR (status = ? AND updated_at <= ?)
		ORDER BY id LIMIT ?`,
		directory.TaskPending, now.UnixNano(), directory.TaskRunning, expiredBefore, limit)
	if err != nil {
		return nil, err
	}

	for i := range tasks {
		if _, err := sqlTx.ExecContext(ctx,
			"UPDATE outbox_tasks SET status = ?, updated_at = ? WHERE id = ?",
			directory.TaskRunning, now.UnixNano(), tasks[i].ID,
		); err != nil {
			return nil, fmt.Errorf("failed to claim task: %w", err)
		}
		tasks[i].Status = directory.TaskRunning
		tasks[i].UpdatedAt = now
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tasks, nil
}

// CompleteTask marks a task done.
func (s *Store) CompleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE outbox_tasks SET status = ?, updated_at = ? WHERE id = ?",
		directory.TaskDone, s.now().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return requireRow(res, "task", id)
}

// ReleaseTasks puts running tasks back to pending.
func (s *Store) ReleaseTasks(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := s.now().UnixNano()
	for _, id := range ids {
		if _, err := sqlTx.ExecContext(ctx,
			"UPDATE outbox_tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			directory.TaskPending, now, id, directory.TaskRunning,
		); err != nil {
			return fmt.Errorf("failed to release task: %w", err)
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FailTask records a failed attempt and parks the task after maxAttempts.
func (s *Store) FailTask(ctx context.Context, id int64, cause error, retryAfter time.Duration, maxAttempts int) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox_tasks
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
		    available_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		message, maxAttempts, directory.TaskFailed, directory.TaskPending,
		now.Add(retryAfter).UnixNano(), now.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record task failure: %w", err)
	}
	return requireRow(res, "task", id)
}

// Tasks lists tasks with the given status, or all tasks when status is empty.
func (s *Store) Tasks(ctx context.Context, status directory.TaskStatus) ([]directory.Task, error) {
	if status == "" {
		return queryTasks(ctx, s.db, "SELECT "+taskColumns+" FROM outbox_tasks ORDER BY id")
	}
	return queryTasks(ctx, s.db, "SELECT "+taskColumns+" FROM outbox_tasks WHERE status = ? ORDER BY id", status)
}

const taskColumns = "id, kind, subject_id, status, attempts, last_error, available_at, created_at, updated_at"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryTasks(ctx context.Context, q querier, query string, args ...any) ([]directory.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []directory.Task
	for rows.Next() {
		var (
			t                                 directory.Task
			kind, status                      string
			availableAt, createdAt, updatedAt int64
		)
		if err := rows.Scan(&t.ID, &kind, &t.SubjectID, &status, &t.Attempts, &t.LastError, &availableAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Kind = directory.TaskKind(kind)
		t.Status = directory.TaskStatus(status)
		t.AvailableAt = time.Unix(0, availableAt)
		t.CreatedAt = time.Unix(0, createdAt)
		t.UpdatedAt = time.Unix(0, updatedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func requireRow(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFoundError(resource, fmt.Sprint(id))
	}
	return nil
}

// translate maps constraint failures onto the directory's error taxonomy.
func translate(resource string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, "UNIQUE constraint failed:"); ok {
		field := strings.TrimSpace(rest)
		if i := strings.IndexAny(field, " (,"); i >= 0 {
			field = field[:i]
		}
		return errors.NewConflictError(resource, field, "")
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return errors.NewValidationError("", nil, resource+" references a missing row")
	}
	return errors.WrapResource("save", resource, "", err)
}

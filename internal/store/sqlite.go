// Package store persists task rows in SQLite. One row per task_id;
// rows are upserted on START and updated in place afterwards, never
// deleted.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/QuanCamile/RemindKanban/internal/models"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		title TEXT,
		status TEXT NOT NULL,
		started_at INTEGER,
		deadline_at INTEGER,
		warn_at INTEGER,
		warned INTEGER NOT NULL DEFAULT 0,
		closed INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status_deadline ON tasks(status, deadline_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return s.ensureTaskColumns(ctx)
}

// ensureTaskColumns adds the columns that postdate the original schema.
// It checks the live table first so only genuinely missing columns are
// added; a real ALTER failure propagates instead of being swallowed.
func (s *Store) ensureTaskColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(tasks)")
	if err != nil {
		return err
	}
	defer rows.Close()

	columns := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	type columnDef struct {
		name string
		ddl  string
	}
	need := []columnDef{
		{name: "paused_at", ddl: "ALTER TABLE tasks ADD COLUMN paused_at INTEGER"},
		{name: "remaining_ms", ddl: "ALTER TABLE tasks ADD COLUMN remaining_ms INTEGER"},
		{name: "client_bearer", ddl: "ALTER TABLE tasks ADD COLUMN client_bearer TEXT"},
		{name: "client_cds_api_key", ddl: "ALTER TABLE tasks ADD COLUMN client_cds_api_key TEXT"},
		{name: "task_url", ddl: "ALTER TABLE tasks ADD COLUMN task_url TEXT"},
		{name: "board_id", ddl: "ALTER TABLE tasks ADD COLUMN board_id TEXT"},
	}
	for _, col := range need {
		if _, ok := columns[col.name]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

const taskColumns = `task_id, title, status, started_at, deadline_at, warn_at,
	warned, closed, paused_at, remaining_ms, client_bearer, client_cds_api_key,
	task_url, board_id, updated_at`

// UpsertStart writes the RUNNING state for a fresh or resumed start as
// a single atomic statement keyed by task_id.
func (s *Store) UpsertStart(ctx context.Context, t models.Task) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO tasks(
		task_id, title, status, started_at, deadline_at, warn_at,
		warned, closed, paused_at, remaining_ms, client_bearer, client_cds_api_key, task_url, board_id, updated_at
	)
	VALUES(?, ?, 'RUNNING', ?, ?, ?, 0, 0, NULL, NULL, ?, ?, ?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET
		title=excluded.title,
		status='RUNNING',
		started_at=excluded.started_at,
		deadline_at=excluded.deadline_at,
		warn_at=excluded.warn_at,
		warned=0,
		closed=0,
		paused_at=NULL,
		remaining_ms=NULL,
		client_bearer=excluded.client_bearer,
		client_cds_api_key=excluded.client_cds_api_key,
		task_url=excluded.task_url,
		board_id=excluded.board_id,
		updated_at=excluded.updated_at`,
		t.TaskID, nullString(t.Title), t.StartedAt, t.DeadlineAt, t.WarnAt,
		nullString(t.ClientBearer), nullString(t.ClientCDSAPIKey),
		nullString(t.TaskURL), nullString(t.BoardID), t.UpdatedAt,
	)
	return err
}

// Get returns the row for taskID, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, taskID string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE task_id=?`, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkPaused snapshots the countdown. remainingMs may be nil when the
// row had no deadline to compute from; the column is NULLed then.
func (s *Store) MarkPaused(ctx context.Context, taskID string, pausedAt int64, remainingMs *int64) error {
	var remaining sql.NullInt64
	if remainingMs != nil {
		remaining = sql.NullInt64{Int64: *remainingMs, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
	UPDATE tasks SET status='PAUSED', paused_at=?, remaining_ms=?, warn_at=NULL, warned=0, updated_at=?
	WHERE task_id=?`,
		pausedAt, remaining, pausedAt, taskID)
	return err
}

// MarkClosed moves the row to the terminal state and purges the
// captured client credentials.
func (s *Store) MarkClosed(ctx context.Context, taskID string, nowMs int64) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE tasks SET status='CLOSED', closed=1, client_bearer=NULL, client_cds_api_key=NULL, updated_at=?
	WHERE task_id=?`,
		nowMs, taskID)
	return err
}

// MarkWarned records that the warning notification fired for the
// current RUNNING period.
func (s *Store) MarkWarned(ctx context.Context, taskID string, nowMs int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET warned=1, updated_at=? WHERE task_id=?`,
		nowMs, taskID)
	return err
}

// WarnCandidates lists RUNNING rows whose warn instant has passed and
// that have not been warned yet.
func (s *Store) WarnCandidates(ctx context.Context, nowMs int64) ([]models.Task, error) {
	return s.queryTasks(ctx, `
	SELECT `+taskColumns+` FROM tasks
	WHERE status='RUNNING' AND warned=0 AND warn_at IS NOT NULL AND warn_at <= ?`, nowMs)
}

// CloseCandidates lists RUNNING rows whose deadline falls at or before
// the given threshold.
func (s *Store) CloseCandidates(ctx context.Context, thresholdMs int64) ([]models.Task, error) {
	return s.queryTasks(ctx, `
	SELECT `+taskColumns+` FROM tasks
	WHERE status='RUNNING' AND closed=0 AND deadline_at IS NOT NULL AND deadline_at <= ?`, thresholdMs)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (models.Task, error) {
	var t models.Task
	var title, bearer, cdsKey, taskURL, boardID sql.NullString
	var startedAt, deadlineAt, warnAt, pausedAt, remainingMs sql.NullInt64
	var warned, closed int

	err := r.Scan(
		&t.TaskID, &title, &t.Status, &startedAt, &deadlineAt, &warnAt,
		&warned, &closed, &pausedAt, &remainingMs, &bearer, &cdsKey,
		&taskURL, &boardID, &t.UpdatedAt,
	)
	if err != nil {
		return models.Task{}, err
	}

	t.Title = title.String
	t.StartedAt = startedAt.Int64
	t.DeadlineAt = deadlineAt.Int64
	t.WarnAt = warnAt.Int64
	t.Warned = warned != 0
	t.Closed = closed != 0
	t.PausedAt = pausedAt.Int64
	t.RemainingMs = remainingMs.Int64
	t.ClientBearer = bearer.String
	t.ClientCDSAPIKey = cdsKey.String
	t.TaskURL = taskURL.String
	t.BoardID = boardID.String
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

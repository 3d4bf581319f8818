package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/irislabs/iris/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store and JobRepo on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path; the containing directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// GetOrCreateUser resolves a channel identity, creating the user plus its
// IDLE state record in one transaction on first contact.
func (s *SQLiteStore) GetOrCreateUser(channel models.Channel, sourceID string) (models.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return models.User{}, fmt.Errorf("begin get-or-create user: %w", err)
	}
	defer tx.Rollback()

	var u models.User
	err = tx.QueryRow(
		`SELECT id, channel, source_id, created_at FROM users WHERE channel = ? AND source_id = ?`,
		channel, sourceID,
	).Scan(&u.ID, &u.Channel, &u.SourceID, &u.CreatedAt)
	if err == nil {
		return u, tx.Commit()
	}
	if err != sql.ErrNoRows {
		slog.Error("SQLiteStore GetOrCreateUser query failed", "error", err, "channel", channel)
		return models.User{}, fmt.Errorf("query user: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO users (channel, source_id, created_at) VALUES (?, ?, ?)`,
		channel, sourceID, now,
	)
	if err != nil {
		slog.Error("SQLiteStore GetOrCreateUser insert failed", "error", err, "channel", channel)
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO user_states (user_id, state, language, task_id, updated_at) VALUES (?, ?, NULL, NULL, ?)`,
		id, models.StateIdle, now,
	); err != nil {
		slog.Error("SQLiteStore GetOrCreateUser state insert failed", "error", err, "userID", id)
		return models.User{}, fmt.Errorf("insert user state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit get-or-create user: %w", err)
	}
	slog.Debug("SQLiteStore created user", "userID", id, "channel", channel)
	return models.User{ID: id, Channel: channel, SourceID: sourceID, CreatedAt: now}, nil
}

// GetUserState returns the user's dialog state, or nil if the user is unknown.
func (s *SQLiteStore) GetUserState(userID int64) (*models.UserState, error) {
	var st models.UserState
	var language, taskID sql.NullString
	err := s.db.QueryRow(
		`SELECT user_id, state, language, task_id, updated_at FROM user_states WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &st.State, &language, &taskID, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("query user state: %w", err)
	}
	st.Language = models.Language(language.String)
	st.TaskID = taskID.String
	return &st, nil
}

// UpdateUserState applies a partial state mutation in a single statement.
func (s *SQLiteStore) UpdateUserState(userID int64, patch StatePatch) error {
	if patch.IsZero() {
		return models.ErrInvalidStatePatch
	}
	query, args := buildStateUpdate(userID, patch, "?")
	res, err := s.db.Exec(query, args...)
	if err != nil {
		slog.Error("SQLiteStore UpdateUserState failed", "error", err, "userID", userID)
		return fmt.Errorf("update user state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("SQLiteStore UpdateUserState succeeded", "userID", userID)
	return nil
}

// CreateSession opens a new booking session for the user.
func (s *SQLiteStore) CreateSession(userID int64, department models.Department) (models.Session, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO sessions (user_id, department, created_at) VALUES (?, ?, ?)`,
		userID, department, now,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "userID", userID)
		return models.Session{}, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Session{}, fmt.Errorf("session id: %w", err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", id, "userID", userID, "department", department)
	return models.Session{ID: id, UserID: userID, Department: department, CreatedAt: now}, nil
}

// LatestSession returns the user's most recent session, or nil.
func (s *SQLiteStore) LatestSession(userID int64) (*models.Session, error) {
	var sess models.Session
	var confirmation sql.NullString
	err := s.db.QueryRow(
		`SELECT id, user_id, department, confirmation_number, created_at
		 FROM sessions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	).Scan(&sess.ID, &sess.UserID, &sess.Department, &confirmation, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LatestSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("query latest session: %w", err)
	}
	sess.ConfirmationNumber = confirmation.String
	return &sess, nil
}

// SetSessionConfirmation records the confirmation number on a session.
func (s *SQLiteStore) SetSessionConfirmation(sessionID int64, number string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET confirmation_number = ? WHERE id = ?`,
		number, sessionID,
	)
	if err != nil {
		slog.Error("SQLiteStore SetSessionConfirmation failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("update session confirmation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// AddRequest appends a free-text request.
func (s *SQLiteStore) AddRequest(userID, sessionID int64, body string) (models.Request, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO requests (user_id, session_id, body, created_at) VALUES (?, ?, ?, ?)`,
		userID, nilIfZero(sessionID), body, now,
	)
	if err != nil {
		slog.Error("SQLiteStore AddRequest failed", "error", err, "userID", userID)
		return models.Request{}, fmt.Errorf("insert request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Request{}, fmt.Errorf("request id: %w", err)
	}
	slog.Debug("SQLiteStore AddRequest succeeded", "requestID", id, "userID", userID, "sessionID", sessionID)
	return models.Request{ID: id, UserID: userID, SessionID: sessionID, Body: body, CreatedAt: now}, nil
}

// SessionRequests returns a session's requests in creation order.
func (s *SQLiteStore) SessionRequests(sessionID int64) ([]models.Request, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, session_id, body, created_at
		 FROM requests WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		slog.Error("SQLiteStore SessionRequests query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("query session requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

// EnqueueJob inserts a new queued job and returns its generated ID.
func (s *SQLiteStore) EnqueueJob(kind string, runAt time.Time, payloadJSON string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, kind, run_at, payload_json, status, attempt, max_attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, kind, runAt.UTC(), payloadJSON, JobStatusQueued, defaultMaxAttempts, now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore EnqueueJob failed", "error", err, "kind", kind)
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	slog.Debug("SQLiteStore EnqueueJob succeeded", "id", id, "kind", kind, "runAt", runAt)
	return id, nil
}

// ClaimDueJobs marks due queued jobs as running and returns them.
func (s *SQLiteStore) ClaimDueJobs(now time.Time, limit int) ([]Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, kind, run_at, payload_json, status, attempt, max_attempts, last_error, locked_at, created_at, updated_at
		 FROM jobs WHERE status = ? AND run_at <= ? ORDER BY run_at LIMIT ?`,
		JobStatusQueued, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	jobs, err := scanJobs(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	lockedAt := time.Now().UTC()
	for i := range jobs {
		if _, err := tx.Exec(
			`UPDATE jobs SET status = ?, locked_at = ?, updated_at = ? WHERE id = ?`,
			JobStatusRunning, lockedAt, lockedAt, jobs[i].ID,
		); err != nil {
			return nil, fmt.Errorf("claim job %s: %w", jobs[i].ID, err)
		}
		jobs[i].Status = JobStatusRunning
		jobs[i].LockedAt = &lockedAt
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return jobs, nil
}

// CompleteJob marks a job as done.
func (s *SQLiteStore) CompleteJob(id string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, locked_at = NULL, updated_at = ? WHERE id = ?`,
		JobStatusDone, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob requeues for retry while attempts remain; otherwise marks failed.
func (s *SQLiteStore) FailJob(id string, errMsg string, nextRunAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE jobs SET
			attempt = attempt + 1,
			last_error = ?,
			locked_at = NULL,
			status = CASE WHEN attempt + 1 >= max_attempts THEN ? ELSE ? END,
			run_at = CASE WHEN attempt + 1 >= max_attempts THEN run_at ELSE ? END,
			updated_at = ?
		 WHERE id = ?`,
		errMsg, JobStatusFailed, JobStatusQueued, nextRunAt.UTC(), now, id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// CancelJob cancels a queued job; cancelling anything else is a no-op.
func (s *SQLiteStore) CancelJob(id string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobStatusCanceled, time.Now().UTC(), id, JobStatusQueued,
	)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// RequeueStaleRunningJobs resets stale running jobs back to queued.
func (s *SQLiteStore) RequeueStaleRunningJobs(staleBefore time.Time) (int, error) {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, locked_at = NULL, updated_at = ? WHERE status = ? AND locked_at < ?`,
		JobStatusQueued, time.Now().UTC(), JobStatusRunning, staleBefore.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetJob retrieves a single job by ID, or nil if absent.
func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, run_at, payload_json, status, attempt, max_attempts, last_error, locked_at, created_at, updated_at
		 FROM jobs WHERE id = ?`,
		id,
	)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

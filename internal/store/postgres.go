package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/irislabs/iris/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store and JobRepo on a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")

	return &PostgresStore{db: db}, nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// GetOrCreateUser resolves a channel identity, creating the user plus its
// IDLE state record in one transaction on first contact.
func (s *PostgresStore) GetOrCreateUser(channel models.Channel, sourceID string) (models.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return models.User{}, fmt.Errorf("begin get-or-create user: %w", err)
	}
	defer tx.Rollback()

	var u models.User
	err = tx.QueryRow(
		`SELECT id, channel, source_id, created_at FROM users WHERE channel = $1 AND source_id = $2`,
		channel, sourceID,
	).Scan(&u.ID, &u.Channel, &u.SourceID, &u.CreatedAt)
	if err == nil {
		return u, tx.Commit()
	}
	if err != sql.ErrNoRows {
		slog.Error("PostgresStore GetOrCreateUser query failed", "error", err, "channel", channel)
		return models.User{}, fmt.Errorf("query user: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	if err := tx.QueryRow(
		`INSERT INTO users (channel, source_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
		channel, sourceID, now,
	).Scan(&id); err != nil {
		slog.Error("PostgresStore GetOrCreateUser insert failed", "error", err, "channel", channel)
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO user_states (user_id, state, language, task_id, updated_at) VALUES ($1, $2, NULL, NULL, $3)`,
		id, models.StateIdle, now,
	); err != nil {
		slog.Error("PostgresStore GetOrCreateUser state insert failed", "error", err, "userID", id)
		return models.User{}, fmt.Errorf("insert user state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit get-or-create user: %w", err)
	}
	slog.Debug("PostgresStore created user", "userID", id, "channel", channel)
	return models.User{ID: id, Channel: channel, SourceID: sourceID, CreatedAt: now}, nil
}

// GetUserState returns the user's dialog state, or nil if the user is unknown.
func (s *PostgresStore) GetUserState(userID int64) (*models.UserState, error) {
	var st models.UserState
	var language, taskID sql.NullString
	err := s.db.QueryRow(
		`SELECT user_id, state, language, task_id, updated_at FROM user_states WHERE user_id = $1`,
		userID,
	).Scan(&st.UserID, &st.State, &language, &taskID, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("query user state: %w", err)
	}
	st.Language = models.Language(language.String)
	st.TaskID = taskID.String
	return &st, nil
}

// UpdateUserState applies a partial state mutation in a single statement.
func (s *PostgresStore) UpdateUserState(userID int64, patch StatePatch) error {
	if patch.IsZero() {
		return models.ErrInvalidStatePatch
	}
	query, args := buildStateUpdate(userID, patch, "?")
	res, err := s.db.Exec(renumberPlaceholders(query), args...)
	if err != nil {
		slog.Error("PostgresStore UpdateUserState failed", "error", err, "userID", userID)
		return fmt.Errorf("update user state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("PostgresStore UpdateUserState succeeded", "userID", userID)
	return nil
}

// CreateSession opens a new booking session for the user.
func (s *PostgresStore) CreateSession(userID int64, department models.Department) (models.Session, error) {
	now := time.Now().UTC()
	var id int64
	if err := s.db.QueryRow(
		`INSERT INTO sessions (user_id, department, created_at) VALUES ($1, $2, $3) RETURNING id`,
		userID, department, now,
	).Scan(&id); err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "userID", userID)
		return models.Session{}, fmt.Errorf("insert session: %w", err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "sessionID", id, "userID", userID, "department", department)
	return models.Session{ID: id, UserID: userID, Department: department, CreatedAt: now}, nil
}

// LatestSession returns the user's most recent session, or nil.
func (s *PostgresStore) LatestSession(userID int64) (*models.Session, error) {
	var sess models.Session
	var confirmation sql.NullString
	err := s.db.QueryRow(
		`SELECT id, user_id, department, confirmation_number, created_at
		 FROM sessions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	).Scan(&sess.ID, &sess.UserID, &sess.Department, &confirmation, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LatestSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("query latest session: %w", err)
	}
	sess.ConfirmationNumber = confirmation.String
	return &sess, nil
}

// SetSessionConfirmation records the confirmation number on a session.
func (s *PostgresStore) SetSessionConfirmation(sessionID int64, number string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET confirmation_number = $1 WHERE id = $2`,
		number, sessionID,
	)
	if err != nil {
		slog.Error("PostgresStore SetSessionConfirmation failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("update session confirmation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// AddRequest appends a free-text request.
func (s *PostgresStore) AddRequest(userID, sessionID int64, body string) (models.Request, error) {
	now := time.Now().UTC()
	var id int64
	if err := s.db.QueryRow(
		`INSERT INTO requests (user_id, session_id, body, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, nilIfZero(sessionID), body, now,
	).Scan(&id); err != nil {
		slog.Error("PostgresStore AddRequest failed", "error", err, "userID", userID)
		return models.Request{}, fmt.Errorf("insert request: %w", err)
	}
	slog.Debug("PostgresStore AddRequest succeeded", "requestID", id, "userID", userID, "sessionID", sessionID)
	return models.Request{ID: id, UserID: userID, SessionID: sessionID, Body: body, CreatedAt: now}, nil
}

// SessionRequests returns a session's requests in creation order.
func (s *PostgresStore) SessionRequests(sessionID int64) ([]models.Request, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, session_id, body, created_at
		 FROM requests WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		slog.Error("PostgresStore SessionRequests query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("query session requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

// EnqueueJob inserts a new queued job and returns its generated ID.
func (s *PostgresStore) EnqueueJob(kind string, runAt time.Time, payloadJSON string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, kind, run_at, payload_json, status, attempt, max_attempts, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		id, kind, runAt.UTC(), payloadJSON, JobStatusQueued, defaultMaxAttempts, now, now,
	)
	if err != nil {
		slog.Error("PostgresStore EnqueueJob failed", "error", err, "kind", kind)
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	slog.Debug("PostgresStore EnqueueJob succeeded", "id", id, "kind", kind, "runAt", runAt)
	return id, nil
}

// ClaimDueJobs atomically claims due queued jobs using SKIP LOCKED so
// multiple runner processes never claim the same job.
func (s *PostgresStore) ClaimDueJobs(now time.Time, limit int) ([]Job, error) {
	rows, err := s.db.Query(
		`UPDATE jobs SET status = $1, locked_at = $2, updated_at = $2
		 WHERE id IN (
			SELECT id FROM jobs WHERE status = $3 AND run_at <= $4
			ORDER BY run_at LIMIT $5 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, kind, run_at, payload_json, status, attempt, max_attempts, last_error, locked_at, created_at, updated_at`,
		JobStatusRunning, time.Now().UTC(), JobStatusQueued, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CompleteJob marks a job as done.
func (s *PostgresStore) CompleteJob(id string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = $1, locked_at = NULL, updated_at = $2 WHERE id = $3`,
		JobStatusDone, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob requeues for retry while attempts remain; otherwise marks failed.
func (s *PostgresStore) FailJob(id string, errMsg string, nextRunAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE jobs SET
			attempt = attempt + 1,
			last_error = $1,
			locked_at = NULL,
			status = CASE WHEN attempt + 1 >= max_attempts THEN $2 ELSE $3 END,
			run_at = CASE WHEN attempt + 1 >= max_attempts THEN run_at ELSE $4 END,
			updated_at = $5
		 WHERE id = $6`,
		errMsg, JobStatusFailed, JobStatusQueued, nextRunAt.UTC(), now, id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// CancelJob cancels a queued job; cancelling anything else is a no-op.
func (s *PostgresStore) CancelJob(id string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		JobStatusCanceled, time.Now().UTC(), id, JobStatusQueued,
	)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// RequeueStaleRunningJobs resets stale running jobs back to queued.
func (s *PostgresStore) RequeueStaleRunningJobs(staleBefore time.Time) (int, error) {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = $1, locked_at = NULL, updated_at = $2 WHERE status = $3 AND locked_at < $4`,
		JobStatusQueued, time.Now().UTC(), JobStatusRunning, staleBefore.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetJob retrieves a single job by ID, or nil if absent.
func (s *PostgresStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, run_at, payload_json, status, attempt, max_attempts, last_error, locked_at, created_at, updated_at
		 FROM jobs WHERE id = $1`,
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

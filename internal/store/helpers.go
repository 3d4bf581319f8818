package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/irislabs/iris/internal/models"
)

// defaultMaxAttempts bounds retries of a failed deferred job.
const defaultMaxAttempts = 3

// nilIfZero returns nil for a zero ID so the column stores NULL.
func nilIfZero(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// buildStateUpdate renders the dynamic UPDATE for a StatePatch. placeholder
// is "?" for SQLite; Postgres placeholders are renumbered by the caller.
func buildStateUpdate(userID int64, patch StatePatch, placeholder string) (string, []interface{}) {
	var sets []string
	var args []interface{}
	if patch.State != nil {
		sets = append(sets, "state = "+placeholder)
		args = append(args, *patch.State)
	}
	if patch.Language != nil {
		sets = append(sets, "language = "+placeholder)
		args = append(args, string(*patch.Language))
	}
	if patch.TaskID != nil {
		sets = append(sets, "task_id = "+placeholder)
		if *patch.TaskID == "" {
			args = append(args, nil)
		} else {
			args = append(args, *patch.TaskID)
		}
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	query := fmt.Sprintf("UPDATE user_states SET %s WHERE user_id = %s", strings.Join(sets, ", "), placeholder)
	args = append(args, userID)
	return query, args
}

// renumberPlaceholders rewrites "?" placeholders to $1..$n for Postgres.
func renumberPlaceholders(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// scanRequests drains request rows in order.
func scanRequests(rows *sql.Rows) ([]models.Request, error) {
	var requests []models.Request
	for rows.Next() {
		var r models.Request
		var sessionID sql.NullInt64
		if err := rows.Scan(&r.ID, &r.UserID, &sessionID, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request row: %w", err)
		}
		r.SessionID = sessionID.Int64
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request rows: %w", err)
	}
	return requests, nil
}

// scanJobs drains job rows.
func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		var j Job
		var payloadJSON, lastError sql.NullString
		var lockedAt sql.NullTime
		if err := rows.Scan(
			&j.ID, &j.Kind, &j.RunAt, &payloadJSON, &j.Status, &j.Attempt, &j.MaxAttempts,
			&lastError, &lockedAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		j.PayloadJSON = payloadJSON.String
		j.LastError = lastError.String
		if lockedAt.Valid {
			j.LockedAt = &lockedAt.Time
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// scanJobRow scans a Job from a single sql.Row.
func scanJobRow(row *sql.Row) (Job, error) {
	var j Job
	var payloadJSON, lastError sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.Kind, &j.RunAt, &payloadJSON, &j.Status, &j.Attempt, &j.MaxAttempts,
		&lastError, &lockedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}
	j.PayloadJSON = payloadJSON.String
	j.LastError = lastError.String
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	return j, nil
}

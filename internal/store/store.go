// Package store provides storage backends for Iris.
//
// It persists users, per-user dialog state, booking sessions, collected
// requests and deferred jobs. SQLite and PostgreSQL backends share one
// schema; an in-memory implementation exists for tests.
package store

import (
	"strings"

	"github.com/irislabs/iris/internal/models"
)

// StatePatch is a partial mutation of a user's dialog state. Nil fields are
// left untouched; all set fields are applied in a single transaction so no
// partial-field race is observable to a subsequent read.
type StatePatch struct {
	State    *models.DialogState
	Language *models.Language
	// TaskID replaces the pending deferred-task handle. A pointer to the
	// empty string clears it.
	TaskID *string
}

// IsZero reports whether the patch mutates nothing.
func (p StatePatch) IsZero() bool {
	return p.State == nil && p.Language == nil && p.TaskID == nil
}

// Store is the durable session store contract. Writers for the same user
// must serialize at the caller; writers for different users are independent.
type Store interface {
	// GetOrCreateUser resolves a channel-native identity to a user, creating
	// the user and an IDLE state record on first contact.
	GetOrCreateUser(channel models.Channel, sourceID string) (models.User, error)

	// GetUserState returns the user's dialog state, or nil if the user does
	// not exist.
	GetUserState(userID int64) (*models.UserState, error)

	// UpdateUserState applies a partial state mutation transactionally.
	UpdateUserState(userID int64, patch StatePatch) error

	// CreateSession opens a new booking session for the user.
	CreateSession(userID int64, department models.Department) (models.Session, error)

	// LatestSession returns the most recent session by creation time, or nil
	// if the user has none.
	LatestSession(userID int64) (*models.Session, error)

	// SetSessionConfirmation records the confirmation number on a session.
	SetSessionConfirmation(sessionID int64, number string) error

	// AddRequest appends a free-text request. sessionID may be zero when no
	// session exists yet.
	AddRequest(userID, sessionID int64, body string) (models.Request, error)

	// SessionRequests returns a session's requests in creation order.
	SessionRequests(sessionID int64) ([]models.Request, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the backend DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the backend DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value forms; anything else is treated as a SQLite path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Session is the session row as seen by this service. Sessions are issued
// elsewhere; the only transition driven here is active -> terminated.
type Session struct {
	ID                string     `db:"id" json:"id"`
	PrincipalID       string     `db:"principal_id" json:"principal_id"`
	IPAddress         string     `db:"ip_address" json:"ip_address"`
	UserAgent         string     `db:"user_agent" json:"user_agent"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	TerminatedAt      *time.Time `db:"terminated_at" json:"terminated_at,omitempty"`
	TerminationReason *string    `db:"termination_reason" json:"termination_reason,omitempty"`
}

// Store defines session storage operations used by the decision executor.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Terminate(ctx context.Context, id, reason string) error
}

type repo struct {
	db *sqlx.DB
}

// NewStore creates a new session store.
func NewStore(db *sqlx.DB) Store {
	return &repo{db: db}
}

func (r *repo) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Terminate marks the session inactive. Idempotent: an already-terminated
// session is left untouched and no error is returned.
func (r *repo) Terminate(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET is_active = FALSE, terminated_at = NOW(), termination_reason = $2
		 WHERE id = $1 AND is_active = TRUE`,
		id, reason)
	return err
}

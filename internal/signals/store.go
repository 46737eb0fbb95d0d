package signals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Well-known event types.
const (
	EventSessionTerminated = "session-terminated"
	EventCredentialLeak    = "credential-leak"
)

// Severity levels for security events.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityEvent is one entry in the security event feed. Events are ingested
// by trusted upstream systems (breach monitors, SOC tooling) and by the
// decision executor on session termination.
type SecurityEvent struct {
	ID          string    `db:"id" json:"id"`
	PrincipalID string    `db:"principal_id" json:"principal_id"`
	SessionID   string    `db:"session_id" json:"session_id,omitempty"`
	EventType   string    `db:"event_type" json:"event_type"`
	Severity    string    `db:"severity" json:"severity"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
	EventTime   time.Time `db:"event_time" json:"event_time"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Store defines storage for security events.
type Store interface {
	Ingest(ctx context.Context, event *SecurityEvent) error
	LatestByType(ctx context.Context, principalID, eventType string, since time.Time) (*SecurityEvent, error)
}

type repo struct {
	db *sqlx.DB
}

// NewStore creates a new security event store.
func NewStore(db *sqlx.DB) Store {
	return &repo{db: db}
}

func (r *repo) Ingest(ctx context.Context, event *SecurityEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Severity == "" {
		event.Severity = SeverityMedium
	}
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}
	event.CreatedAt = time.Now()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO security_events (id, principal_id, session_id, event_type, severity, reason, event_time, created_at)
		VALUES (:id, :principal_id, :session_id, :event_type, :severity, :reason, :event_time, :created_at)
	`, event)
	return err
}

func (r *repo) LatestByType(ctx context.Context, principalID, eventType string, since time.Time) (*SecurityEvent, error) {
	var event SecurityEvent
	err := r.db.GetContext(ctx, &event, `
		SELECT * FROM security_events
		WHERE principal_id = $1 AND event_type = $2 AND event_time > $3
		ORDER BY event_time DESC
		LIMIT 1
	`, principalID, eventType, since)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

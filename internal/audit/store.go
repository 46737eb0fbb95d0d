package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Record is one append-only row in the authentication-context audit log.
// A record is written for every access evaluation, allow outcomes included.
type Record struct {
	ID                string         `json:"id" db:"id"`
	PrincipalID       string         `json:"principal_id" db:"principal_id"`
	SessionID         string         `json:"session_id" db:"session_id"`
	IPAddress         string         `json:"ip_address" db:"ip_address"`
	UserAgent         string         `json:"user_agent" db:"user_agent"`
	DeviceFingerprint string         `json:"device_fingerprint" db:"device_fingerprint"`
	Country           string         `json:"country" db:"country"`
	City              string         `json:"city" db:"city"`
	ISP               string         `json:"isp" db:"isp"`
	IsVPN             bool           `json:"is_vpn" db:"is_vpn"`
	IsTor             bool           `json:"is_tor" db:"is_tor"`
	IPReputation      string         `json:"ip_reputation" db:"ip_reputation"`
	ImpossibleTravel  bool           `json:"impossible_travel" db:"impossible_travel"`
	NewDevice         bool           `json:"new_device" db:"new_device"`
	UnusualTime       bool           `json:"unusual_time" db:"unusual_time"`
	CredentialLeak    bool           `json:"credential_leak" db:"credential_leak"`
	LoginVelocity     int            `json:"login_velocity" db:"login_velocity"`
	RiskScore         int            `json:"risk_score" db:"risk_score"`
	RiskLevel         string         `json:"risk_level" db:"risk_level"`
	Action            string         `json:"action" db:"action"`
	Reason            string         `json:"reason,omitempty" db:"reason"`
	Factors           pq.StringArray `json:"factors,omitempty" db:"factors"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// QueryParams holds filters for querying audit records.
type QueryParams struct {
	PrincipalID *string
	SessionID   *string
	Action      *string
	RiskLevel   *string
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int
	Offset      int
}

// Store defines audit log storage operations. Appends are the only writes;
// records are never mutated or deleted through this interface.
type Store interface {
	Append(ctx context.Context, r Record) (string, error)
	HasFingerprint(ctx context.Context, principalID, fingerprint string) (bool, error)
	CountRecentLogins(ctx context.Context, principalID string, since time.Time) (int, error)
	LastLoginLocation(ctx context.Context, principalID string) (country, city string, at time.Time, err error)
	Query(ctx context.Context, params QueryParams) ([]Record, int, error)
	Get(ctx context.Context, id string) (Record, error)
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a new audit store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) Append(ctx context.Context, r Record) (string, error) {
	var id string
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO auth_audit_logs (
			principal_id, session_id, ip_address, user_agent, device_fingerprint,
			country, city, isp, is_vpn, is_tor, ip_reputation,
			impossible_travel, new_device, unusual_time, credential_leak,
			login_velocity, risk_score, risk_level, action, reason, factors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		r.PrincipalID, r.SessionID, r.IPAddress, r.UserAgent, r.DeviceFingerprint,
		r.Country, r.City, r.ISP, r.IsVPN, r.IsTor, r.IPReputation,
		r.ImpossibleTravel, r.NewDevice, r.UnusualTime, r.CredentialLeak,
		r.LoginVelocity, r.RiskScore, r.RiskLevel, r.Action, r.Reason, r.Factors,
	).Scan(&id)
	return id, err
}

func (s *store) HasFingerprint(ctx context.Context, principalID, fingerprint string) (bool, error) {
	var seen bool
	err := s.db.GetContext(ctx, &seen,
		`SELECT EXISTS (
			SELECT 1 FROM auth_audit_logs
			WHERE principal_id = $1 AND device_fingerprint = $2
		)`, principalID, fingerprint)
	return seen, err
}

func (s *store) CountRecentLogins(ctx context.Context, principalID string, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM auth_audit_logs
		 WHERE principal_id = $1 AND action = 'allow' AND created_at > $2`,
		principalID, since)
	return count, err
}

func (s *store) LastLoginLocation(ctx context.Context, principalID string) (string, string, time.Time, error) {
	var row struct {
		Country   string    `db:"country"`
		City      string    `db:"city"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT country, city, created_at FROM auth_audit_logs
		 WHERE principal_id = $1 AND action = 'allow'
		 ORDER BY created_at DESC LIMIT 1`, principalID)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return row.Country, row.City, row.CreatedAt, nil
}

func (s *store) Query(ctx context.Context, params QueryParams) ([]Record, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	addFilter := func(col string, v interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", col, argIdx)
		args = append(args, v)
		argIdx++
	}

	if params.PrincipalID != nil {
		addFilter("principal_id", *params.PrincipalID)
	}
	if params.SessionID != nil {
		addFilter("session_id", *params.SessionID)
	}
	if params.Action != nil {
		addFilter("action", *params.Action)
	}
	if params.RiskLevel != nil {
		addFilter("risk_level", *params.RiskLevel)
	}
	if params.StartTime != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *params.StartTime)
		argIdx++
	}
	if params.EndTime != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *params.EndTime)
		argIdx++
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM auth_audit_logs`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM auth_audit_logs` + where + ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, params.Limit)
		argIdx++
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, params.Offset)
	}

	records := []Record{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *store) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	err := s.db.GetContext(ctx, &r, `SELECT * FROM auth_audit_logs WHERE id = $1`, id)
	return r, err
}

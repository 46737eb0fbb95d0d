package mfa

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// TOTPSecret is a stored TOTP secret for a principal.
type TOTPSecret struct {
	ID          string     `db:"id" json:"id"`
	PrincipalID string     `db:"principal_id" json:"principal_id"`
	Secret      string     `db:"secret" json:"-"` // never expose in JSON
	Verified    bool       `db:"verified" json:"verified"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
}

// TOTPStore defines the interface for TOTP secret storage.
type TOTPStore interface {
	Upsert(ctx context.Context, secret *TOTPSecret) error
	GetByPrincipal(ctx context.Context, principalID string) (*TOTPSecret, error)
	MarkVerified(ctx context.Context, id string) error
}

type totpRepo struct {
	db *sqlx.DB
}

// NewTOTPStore creates a new TOTP store.
func NewTOTPStore(db *sqlx.DB) TOTPStore {
	return &totpRepo{db: db}
}

func (r *totpRepo) Upsert(ctx context.Context, secret *TOTPSecret) error {
	query := `
		INSERT INTO mfa_totp_secrets (principal_id, secret, verified)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (principal_id)
		DO UPDATE SET secret = EXCLUDED.secret, verified = FALSE, verified_at = NULL
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query, secret.PrincipalID, secret.Secret).
		Scan(&secret.ID, &secret.CreatedAt)
}

func (r *totpRepo) GetByPrincipal(ctx context.Context, principalID string) (*TOTPSecret, error) {
	var secret TOTPSecret
	err := r.db.GetContext(ctx, &secret,
		`SELECT * FROM mfa_totp_secrets WHERE principal_id = $1`, principalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &secret, nil
}

func (r *totpRepo) MarkVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mfa_totp_secrets SET verified = TRUE, verified_at = NOW() WHERE id = $1`, id)
	return err
}

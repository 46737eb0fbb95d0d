package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// DefaultRole is the lowest privilege level, assigned when a principal has
// no role record.
const DefaultRole = "user"

// RoleStore resolves a principal's assigned role.
type RoleStore interface {
	GetRole(ctx context.Context, principalID string) (string, error)
}

type roleRepo struct {
	db *sqlx.DB
}

// NewRoleStore creates a new role store.
func NewRoleStore(db *sqlx.DB) RoleStore {
	return &roleRepo{db: db}
}

func (r *roleRepo) GetRole(ctx context.Context, principalID string) (string, error) {
	var role string
	err := r.db.GetContext(ctx, &role,
		`SELECT role FROM user_roles WHERE user_id = $1`, principalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultRole, nil
		}
		return "", err
	}
	return role, nil
}

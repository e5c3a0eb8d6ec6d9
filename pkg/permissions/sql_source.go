package permissions

import (
	"context"

	"github.com/jackc/pgx/v5"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// Querier is the narrow database surface SQLSource needs. It is satisfied
// by [*postgres.Client] from pkg/clients/postgres and by pgxmock-backed
// clients in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SQLSource is the PostgreSQL-backed [Source]. It reads direct grants,
// role assignments, and role-derived grants from the platform schema.
//
// Scope handling: an empty tenantID is queried as SQL NULL, matching
// platform-scoped rows only; a non-empty tenantID matches that tenant's
// rows only. Rows are never shared between the two scopes.
type SQLSource struct {
	db Querier
}

// NewSQLSource creates a SQLSource on top of the given querier.
func NewSQLSource(db Querier) *SQLSource {
	return &SQLSource{db: db}
}

const sqlUserExists = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

const sqlRoleExists = `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`

// sqlUserPermissions returns direct grants unioned with role-derived
// grants for one user in one scope. IS NOT DISTINCT FROM makes the NULL
// (platform) and non-NULL (tenant) scopes both match exactly.
const sqlUserPermissions = `
SELECT p.resource, p.action, p.scope, 'direct' AS source_type, up.priority,
       p.dangerous, p.requires_mfa, p.requires_approval
FROM user_permissions up
JOIN permissions p ON p.id = up.permission_id
WHERE up.user_id = $1 AND up.tenant_id IS NOT DISTINCT FROM $2
UNION ALL
SELECT p.resource, p.action, p.scope, 'role' AS source_type, rp.priority,
       p.dangerous, p.requires_mfa, p.requires_approval
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1 AND ur.tenant_id IS NOT DISTINCT FROM $2`

const sqlUserRoles = `
SELECT r.id, r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1 AND ur.tenant_id IS NOT DISTINCT FROM $2
ORDER BY r.name`

const sqlUsersWithRole = `
SELECT ur.user_id
FROM user_roles ur
WHERE ur.role_id = $1 AND ur.tenant_id IS NOT DISTINCT FROM $2`

// UserPermissions returns every permission record the user holds in the
// given scope. A user with no rows in either scope but present in the
// users table gets an empty slice; an unknown user gets
// [sserr.CodeNotFoundUser].
func (s *SQLSource) UserPermissions(ctx context.Context, userID, tenantID string) ([]Record, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sqlUserPermissions, userID, tenantParam(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Resource, &r.Action, &r.Scope, &r.SourceType,
			&r.Priority, &r.Dangerous, &r.RequiresMFA, &r.RequiresApproval); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
				"permissions: failed to scan permission row")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
			"permissions: permission query iteration failed")
	}

	return DedupeRecords(records), nil
}

// UserRoles returns the roles the user holds in the given scope. An
// unknown user gets [sserr.CodeNotFoundUser].
func (s *SQLSource) UserRoles(ctx context.Context, userID, tenantID string) ([]Role, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sqlUserRoles, userID, tenantParam(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
				"permissions: failed to scan role row")
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
			"permissions: role query iteration failed")
	}

	return roles, nil
}

// UsersWithRole returns the IDs of every user holding the role in the
// given scope. An unknown role gets [sserr.CodeNotFound].
func (s *SQLSource) UsersWithRole(ctx context.Context, roleID, tenantID string) ([]string, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, sqlRoleExists, roleID).Scan(&exists); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
			"permissions: role existence check failed")
	}
	if !exists {
		return nil, sserr.Newf(sserr.CodeNotFound,
			"permissions: role %q not found", roleID)
	}

	rows, err := s.db.Query(ctx, sqlUsersWithRole, roleID, tenantParam(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
				"permissions: failed to scan user id row")
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
			"permissions: role membership query iteration failed")
	}

	return users, nil
}

// requireUser rejects unknown user IDs with CodeNotFoundUser so callers
// can distinguish "no such user" from an empty grant set.
func (s *SQLSource) requireUser(ctx context.Context, userID string) error {
	var exists bool
	if err := s.db.QueryRow(ctx, sqlUserExists, userID).Scan(&exists); err != nil {
		return sserr.Wrap(err, sserr.CodeInternalDatabase,
			"permissions: user existence check failed")
	}
	if !exists {
		return sserr.Newf(sserr.CodeNotFoundUser,
			"permissions: user %q not found", userID)
	}
	return nil
}

// tenantParam maps the empty (platform) tenant to SQL NULL.
func tenantParam(tenantID string) any {
	if tenantID == "" {
		return nil
	}
	return tenantID
}

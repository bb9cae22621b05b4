package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/shared"
)

// ErrNameTaken indicates a role name or element code is already in use.
var ErrNameTaken = errors.New("rules: name already in use")

// Repository defines persistence operations for the permission matrix.
type Repository interface {
	CreateRole(ctx context.Context, name, description string) (Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	CreateElement(ctx context.Context, code, name, description string) (BusinessElement, error)
	GetElementByCode(ctx context.Context, code string) (BusinessElement, error)
	ListElements(ctx context.Context) ([]BusinessElement, error)

	CreateRule(ctx context.Context, roleID, elementID int64, grants Grants) (AccessRule, error)
	UpdateRule(ctx context.Context, id int64, grants Grants) (AccessRule, error)
	DeleteRule(ctx context.Context, id int64) error
	GetRule(ctx context.Context, roleID, elementID int64) (AccessRule, error)
	ListRulesForRole(ctx context.Context, roleID int64) ([]AccessRule, error)
	RulesForElementCode(ctx context.Context, roleIDs []int64, code string) ([]AccessRule, error)

	RolesForUser(ctx context.Context, userID int64) ([]int64, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a PostgreSQL repository with bounded call timeouts.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, timeout: timeout}
}

func (r *PGRepository) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func mapStoreErr(op string, err error) error {
	if db.IsTimeout(err) {
		return fmt.Errorf("rules: %s: %w", op, shared.ErrStoreTimeout)
	}
	return fmt.Errorf("rules: %s: %w", op, err)
}

const ruleColumns = `id, role_id, element_id, read_permission, read_all_permission, create_permission,
	update_permission, update_all_permission, delete_permission, delete_all_permission`

func scanRule(row pgx.Row) (AccessRule, error) {
	var rule AccessRule
	err := row.Scan(&rule.ID, &rule.RoleID, &rule.ElementID,
		&rule.CanRead, &rule.CanReadAll, &rule.CanCreate,
		&rule.CanUpdate, &rule.CanUpdateAll, &rule.CanDelete, &rule.CanDeleteAll)
	return rule, err
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at, updated_at`,
		name, description).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "roles_name_key") {
			return Role{}, ErrNameTaken
		}
		return Role{}, mapStoreErr("create role", err)
	}
	return role, nil
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`,
		id).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, mapStoreErr("get role", err)
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, mapStoreErr("list roles", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, mapStoreErr("list roles", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("list roles", err)
	}
	return roles, nil
}

// UpdateRole updates an existing role.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id, name, description).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err, "roles_name_key") {
			return Role{}, ErrNameTaken
		}
		return Role{}, mapStoreErr("update role", err)
	}
	return role, nil
}

// DeleteRole removes a role. Memberships and rules cascade away with it, so
// users are never left pointing at a dangling role.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return mapStoreErr("delete role", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateElement inserts a new business element.
func (r *PGRepository) CreateElement(ctx context.Context, code, name, description string) (BusinessElement, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var el BusinessElement
	err := r.pool.QueryRow(ctx,
		`INSERT INTO business_elements (code, name, description) VALUES ($1, $2, $3)
		 RETURNING id, code, name, description`,
		code, name, description).Scan(&el.ID, &el.Code, &el.Name, &el.Description)
	if err != nil {
		if db.IsUniqueViolation(err, "business_elements_code_key") {
			return BusinessElement{}, ErrNameTaken
		}
		return BusinessElement{}, mapStoreErr("create element", err)
	}
	return el, nil
}

// GetElementByCode fetches an element by its unique code.
func (r *PGRepository) GetElementByCode(ctx context.Context, code string) (BusinessElement, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var el BusinessElement
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, description FROM business_elements WHERE code = $1`,
		code).Scan(&el.ID, &el.Code, &el.Name, &el.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BusinessElement{}, shared.ErrNotFound
		}
		return BusinessElement{}, mapStoreErr("get element", err)
	}
	return el, nil
}

// ListElements returns all elements ordered by code.
func (r *PGRepository) ListElements(ctx context.Context) ([]BusinessElement, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, description FROM business_elements ORDER BY code`)
	if err != nil {
		return nil, mapStoreErr("list elements", err)
	}
	defer rows.Close()
	var elements []BusinessElement
	for rows.Next() {
		var el BusinessElement
		if err := rows.Scan(&el.ID, &el.Code, &el.Name, &el.Description); err != nil {
			return nil, mapStoreErr("list elements", err)
		}
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("list elements", err)
	}
	return elements, nil
}

// CreateRule inserts the rule for a (role, element) pair. A second rule for
// the same pair violates the unique key and surfaces ErrDuplicateRule.
func (r *PGRepository) CreateRule(ctx context.Context, roleID, elementID int64, grants Grants) (AccessRule, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`INSERT INTO access_rules (role_id, element_id, read_permission, read_all_permission, create_permission,
			update_permission, update_all_permission, delete_permission, delete_all_permission)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+ruleColumns,
		roleID, elementID, grants.CanRead, grants.CanReadAll, grants.CanCreate,
		grants.CanUpdate, grants.CanUpdateAll, grants.CanDelete, grants.CanDeleteAll))
	if err != nil {
		if db.IsUniqueViolation(err, "access_rules_role_id_element_id_key") {
			return AccessRule{}, shared.ErrDuplicateRule
		}
		return AccessRule{}, mapStoreErr("create rule", err)
	}
	return rule, nil
}

// UpdateRule replaces the grants of an existing rule.
func (r *PGRepository) UpdateRule(ctx context.Context, id int64, grants Grants) (AccessRule, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`UPDATE access_rules SET read_permission = $2, read_all_permission = $3, create_permission = $4,
			update_permission = $5, update_all_permission = $6, delete_permission = $7, delete_all_permission = $8
		 WHERE id = $1
		 RETURNING `+ruleColumns,
		id, grants.CanRead, grants.CanReadAll, grants.CanCreate,
		grants.CanUpdate, grants.CanUpdateAll, grants.CanDelete, grants.CanDeleteAll))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessRule{}, shared.ErrNotFound
		}
		return AccessRule{}, mapStoreErr("update rule", err)
	}
	return rule, nil
}

// DeleteRule removes a rule by ID.
func (r *PGRepository) DeleteRule(ctx context.Context, id int64) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_rules WHERE id = $1`, id)
	if err != nil {
		return mapStoreErr("delete rule", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetRule fetches the single rule for a (role, element) pair.
func (r *PGRepository) GetRule(ctx context.Context, roleID, elementID int64) (AccessRule, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM access_rules WHERE role_id = $1 AND element_id = $2`,
		roleID, elementID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessRule{}, shared.ErrNotFound
		}
		return AccessRule{}, mapStoreErr("get rule", err)
	}
	return rule, nil
}

// ListRulesForRole returns every rule granted to a role.
func (r *PGRepository) ListRulesForRole(ctx context.Context, roleID int64) ([]AccessRule, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM access_rules WHERE role_id = $1 ORDER BY element_id`, roleID)
	if err != nil {
		return nil, mapStoreErr("list rules for role", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// RulesForElementCode returns the rules any of the given roles hold on the
// element identified by code. An unknown code simply matches nothing.
func (r *PGRepository) RulesForElementCode(ctx context.Context, roleIDs []int64, code string) ([]AccessRule, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT ar.id, ar.role_id, ar.element_id, ar.read_permission, ar.read_all_permission, ar.create_permission,
			ar.update_permission, ar.update_all_permission, ar.delete_permission, ar.delete_all_permission
		 FROM access_rules ar
		 JOIN business_elements be ON be.id = ar.element_id
		 WHERE be.code = $1 AND ar.role_id = ANY($2)`,
		code, roleIDs)
	if err != nil {
		return nil, mapStoreErr("rules for element", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// RolesForUser returns the IDs of every role assigned to the user.
func (r *PGRepository) RolesForUser(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapStoreErr("roles for user", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapStoreErr("roles for user", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("roles for user", err)
	}
	return ids, nil
}

// AssignRole grants the role to the user. Assigning twice is a no-op.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.ErrInvalidRole
		}
		return mapStoreErr("assign role", err)
	}
	return nil
}

// RemoveRole revokes the role from the user.
func (r *PGRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return mapStoreErr("remove role", err)
	}
	return nil
}

func collectRules(rows pgx.Rows) ([]AccessRule, error) {
	var result []AccessRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, mapStoreErr("scan rule", err)
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("scan rule", err)
	}
	return result, nil
}

var _ Repository = (*PGRepository)(nil)

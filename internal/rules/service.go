package rules

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/warden-auth/warden/internal/shared"
)

// Service orchestrates the role→element permission matrix. Mutations happen
// only through administrative callers; the matrix is treated as externally
// mutable at any time, so nothing here is cached.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rules: role name required")
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: actorID, Action: shared.AuditRoleCreate, Entity: "role",
		EntityID: strconv.FormatInt(role.ID, 10), Meta: map[string]any{"name": role.Name},
	})
	return role, nil
}

// UpdateRole updates name and description of an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rules: role name required")
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role. Rules and memberships cascade away with it.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: actorID, Action: shared.AuditRoleDelete, Entity: "role",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}

// ListElements returns all business elements.
func (s *Service) ListElements(ctx context.Context) ([]BusinessElement, error) {
	return s.repo.ListElements(ctx)
}

// CreateElement registers a new protected element class.
func (s *Service) CreateElement(ctx context.Context, code, name, description string) (BusinessElement, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return BusinessElement{}, errors.New("rules: element code required")
	}
	return s.repo.CreateElement(ctx, code, strings.TrimSpace(name), strings.TrimSpace(description))
}

// GetElementByCode fetches an element by code.
func (s *Service) GetElementByCode(ctx context.Context, code string) (BusinessElement, error) {
	return s.repo.GetElementByCode(ctx, code)
}

// CreateRule inserts the single rule for a (role, element) pair. The pair is a
// unique key; a second rule fails with ErrDuplicateRule.
func (s *Service) CreateRule(ctx context.Context, actorID, roleID, elementID int64, grants Grants) (AccessRule, error) {
	rule, err := s.repo.CreateRule(ctx, roleID, elementID, grants)
	if err != nil {
		return AccessRule{}, err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: actorID, Action: shared.AuditRuleCreate, Entity: "access_rule",
		EntityID: strconv.FormatInt(rule.ID, 10),
		Meta:     map[string]any{"role_id": roleID, "element_id": elementID},
	})
	return rule, nil
}

// UpdateRule replaces the grants of an existing rule.
func (s *Service) UpdateRule(ctx context.Context, actorID, id int64, grants Grants) (AccessRule, error) {
	rule, err := s.repo.UpdateRule(ctx, id, grants)
	if err != nil {
		return AccessRule{}, err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: actorID, Action: shared.AuditRuleUpdate, Entity: "access_rule",
		EntityID: strconv.FormatInt(id, 10),
	})
	return rule, nil
}

// DeleteRule removes a rule by ID.
func (s *Service) DeleteRule(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: actorID, Action: shared.AuditRuleDelete, Entity: "access_rule",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}

// GetRule fetches the rule for a (role, element) pair.
func (s *Service) GetRule(ctx context.Context, roleID, elementID int64) (AccessRule, error) {
	return s.repo.GetRule(ctx, roleID, elementID)
}

// ListRulesForRole returns every rule granted to a role.
func (s *Service) ListRulesForRole(ctx context.Context, roleID int64) ([]AccessRule, error) {
	return s.repo.ListRulesForRole(ctx, roleID)
}

// RolesForUser returns the IDs of the user's assigned roles.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.RolesForUser(ctx, userID)
}

// RulesForElementCode returns the rules the given roles hold on an element
// code. An unknown code matches nothing, feeding default-deny downstream.
func (s *Service) RulesForElementCode(ctx context.Context, roleIDs []int64, code string) ([]AccessRule, error) {
	return s.repo.RulesForElementCode(ctx, roleIDs, code)
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RemoveRole revokes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.RemoveRole(ctx, userID, roleID)
}

package rules

import (
	"time"

	"github.com/warden-auth/warden/internal/shared"
)

// Role is a named bucket of access rules.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BusinessElement is a named class of protected entity, e.g. "user" or "order".
type BusinessElement struct {
	ID          int64
	Code        string
	Name        string
	Description string
}

// AccessRule is one edge of the permission matrix, hoisted into shared so the
// authz engine can consume rule rows without importing this package.
type AccessRule = shared.AccessRule

// Grants describes the boolean flags of a rule without its identity, used for
// create and update payloads.
type Grants struct {
	CanRead      bool
	CanReadAll   bool
	CanCreate    bool
	CanUpdate    bool
	CanUpdateAll bool
	CanDelete    bool
	CanDeleteAll bool
}

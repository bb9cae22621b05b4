// Package authz resolves (actor, element, action) triples to allow/deny
// decisions against the role→element permission matrix.
package authz

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/warden-auth/warden/internal/shared"
)

// Action is an operation on a protected element.
type Action string

// Actions understood by the permission matrix.
const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Decision is the outcome of an authorization check.
type Decision int

// Possible decisions. Deny is the zero value: every path that cannot prove a
// grant falls through to it.
const (
	Deny Decision = iota
	Allow
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// RuleSource supplies the role memberships and rule rows the engine evaluates.
type RuleSource interface {
	RolesForUser(ctx context.Context, userID int64) ([]int64, error)
	RulesForElementCode(ctx context.Context, roleIDs []int64, code string) ([]shared.AccessRule, error)
}

// Engine evaluates authorization checks. It holds no mutable state beyond a
// singleflight group, so checks are safe under arbitrary concurrency.
type Engine struct {
	source RuleSource
	group  singleflight.Group
}

// NewEngine constructs an Engine.
func NewEngine(source RuleSource) *Engine {
	return &Engine{source: source}
}

// Authorize decides whether the actor may perform action on the element,
// distinguishing own records from records of other users. Inactive actors and
// unknown elements are denied outright; denial is an outcome, not an error.
func (e *Engine) Authorize(ctx context.Context, actor shared.Actor, elementCode string, action Action, ownRecord bool) (Decision, error) {
	if !actor.IsActive {
		return Deny, nil
	}
	ruleset, err := e.loadRules(ctx, actor.UserID, elementCode)
	if err != nil {
		return Deny, err
	}
	if Evaluate(ruleset, action, ownRecord) {
		return Allow, nil
	}
	return Deny, nil
}

// loadRules fetches the actor's applicable rule rows, collapsing concurrent
// identical loads. Results are not retained between flights because the
// matrix may be mutated externally at any time.
func (e *Engine) loadRules(ctx context.Context, userID int64, elementCode string) ([]shared.AccessRule, error) {
	key := strconv.FormatInt(userID, 10) + ":" + elementCode
	resultChan := e.group.DoChan(key, func() (any, error) {
		roleIDs, err := e.source.RolesForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(roleIDs) == 0 {
			return []shared.AccessRule(nil), nil
		}
		return e.source.RulesForElementCode(ctx, roleIDs, elementCode)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		ruleset, _ := res.Val.([]shared.AccessRule)
		return ruleset, nil
	}
}

// Evaluate applies union semantics over the rule rows: the action is granted
// iff at least one row carries the applicable flag. Pure and side-effect-free
// given the snapshot.
func Evaluate(ruleset []shared.AccessRule, action Action, ownRecord bool) bool {
	for _, rule := range ruleset {
		if granted(rule, action, ownRecord) {
			return true
		}
	}
	return false
}

func granted(rule shared.AccessRule, action Action, ownRecord bool) bool {
	switch action {
	case ActionCreate:
		// Ownership is not established yet at create time.
		return rule.CanCreate
	case ActionRead:
		if ownRecord {
			return rule.CanRead
		}
		return rule.CanReadAll
	case ActionUpdate:
		if ownRecord {
			return rule.CanUpdate
		}
		return rule.CanUpdateAll
	case ActionDelete:
		if ownRecord {
			return rule.CanDelete
		}
		return rule.CanDeleteAll
	}
	return false
}

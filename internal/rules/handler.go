package rules

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// Handler exposes the administrative JSON API for the permission matrix. The
// matrix is self-hosting: every route is guarded by the engine over the core
// element codes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementRole, authz.ActionRead))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{id}", h.getRole)
		r.Get("/roles/{id}/rules", h.listRulesForRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementRole, authz.ActionCreate))
		r.Post("/roles", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementRole, authz.ActionUpdate))
		r.Put("/roles/{id}", h.updateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementRole, authz.ActionDelete))
		r.Delete("/roles/{id}", h.deleteRole)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementBusinessElement, authz.ActionRead))
		r.Get("/elements", h.listElements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementBusinessElement, authz.ActionCreate))
		r.Post("/elements", h.createElement)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementAccessRule, authz.ActionCreate))
		r.Post("/rules", h.createRule)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementAccessRule, authz.ActionUpdate))
		r.Put("/rules/{id}", h.updateRule)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementAccessRule, authz.ActionDelete))
		r.Delete("/rules/{id}", h.deleteRule)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ElementUser, authz.ActionUpdate))
		r.Post("/users/{id}/roles", h.assignRole)
		r.Delete("/users/{id}/roles/{roleID}", h.removeRole)
	})
}

type roleView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type elementView struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ruleView struct {
	ID        int64 `json:"id"`
	RoleID    int64 `json:"role_id"`
	ElementID int64 `json:"element_id"`
	Read      bool  `json:"read"`
	ReadAll   bool  `json:"read_all"`
	Create    bool  `json:"create"`
	Update    bool  `json:"update"`
	UpdateAll bool  `json:"update_all"`
	Delete    bool  `json:"delete"`
	DeleteAll bool  `json:"delete_all"`
}

type rolePayload struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
}

type elementPayload struct {
	Code        string `json:"code" validate:"required,max=100"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type rulePayload struct {
	RoleID    int64 `json:"role_id" validate:"required"`
	ElementID int64 `json:"element_id" validate:"required"`
	Read      bool  `json:"read"`
	ReadAll   bool  `json:"read_all"`
	Create    bool  `json:"create"`
	Update    bool  `json:"update"`
	UpdateAll bool  `json:"update_all"`
	Delete    bool  `json:"delete"`
	DeleteAll bool  `json:"delete_all"`
}

type grantsPayload struct {
	Read      bool `json:"read"`
	ReadAll   bool `json:"read_all"`
	Create    bool `json:"create"`
	Update    bool `json:"update"`
	UpdateAll bool `json:"update_all"`
	Delete    bool `json:"delete"`
	DeleteAll bool `json:"delete_all"`
}

type assignPayload struct {
	RoleID int64 `json:"role_id" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondErr(w, "list roles", err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleView(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if !h.decode(w, r, &payload) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), actorID(r), payload.Name, payload.Description)
	if err != nil {
		h.respondErr(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleView(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload rolePayload
	if !h.decode(w, r, &payload) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, payload.Name, payload.Description)
	if err != nil {
		h.respondErr(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleView(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), actorID(r), id); err != nil {
		h.respondErr(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listElements(w http.ResponseWriter, r *http.Request) {
	elements, err := h.service.ListElements(r.Context())
	if err != nil {
		h.respondErr(w, "list elements", err)
		return
	}
	views := make([]elementView, 0, len(elements))
	for _, el := range elements {
		views = append(views, elementView{ID: el.ID, Code: el.Code, Name: el.Name, Description: el.Description})
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) createElement(w http.ResponseWriter, r *http.Request) {
	var payload elementPayload
	if !h.decode(w, r, &payload) {
		return
	}
	el, err := h.service.CreateElement(r.Context(), payload.Code, payload.Name, payload.Description)
	if err != nil {
		h.respondErr(w, "create element", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, elementView{ID: el.ID, Code: el.Code, Name: el.Name, Description: el.Description})
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if !h.decode(w, r, &payload) {
		return
	}
	rule, err := h.service.CreateRule(r.Context(), actorID(r), payload.RoleID, payload.ElementID, Grants{
		CanRead: payload.Read, CanReadAll: payload.ReadAll, CanCreate: payload.Create,
		CanUpdate: payload.Update, CanUpdateAll: payload.UpdateAll,
		CanDelete: payload.Delete, CanDeleteAll: payload.DeleteAll,
	})
	if err != nil {
		h.respondErr(w, "create rule", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRuleView(rule))
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload grantsPayload
	if !h.decode(w, r, &payload) {
		return
	}
	rule, err := h.service.UpdateRule(r.Context(), actorID(r), id, Grants{
		CanRead: payload.Read, CanReadAll: payload.ReadAll, CanCreate: payload.Create,
		CanUpdate: payload.Update, CanUpdateAll: payload.UpdateAll,
		CanDelete: payload.Delete, CanDeleteAll: payload.DeleteAll,
	})
	if err != nil {
		h.respondErr(w, "update rule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRuleView(rule))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRule(r.Context(), actorID(r), id); err != nil {
		h.respondErr(w, "delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRulesForRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ruleset, err := h.service.ListRulesForRole(r.Context(), id)
	if err != nil {
		h.respondErr(w, "list rules", err)
		return
	}
	views := make([]ruleView, 0, len(ruleset))
	for _, rule := range ruleset {
		views = append(views, toRuleView(rule))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload assignPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, payload.RoleID); err != nil {
		h.respondErr(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.respondErr(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNameTaken) {
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	if h.logger != nil && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrDuplicateRule) && !errors.Is(err, shared.ErrInvalidRole) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorID(r *http.Request) int64 {
	if actor := shared.ActorFromContext(r.Context()); actor != nil {
		return actor.UserID
	}
	return 0
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return 0, false
	}
	return id, true
}

func toRoleView(role Role) roleView {
	return roleView{ID: role.ID, Name: role.Name, Description: role.Description, CreatedAt: role.CreatedAt, UpdatedAt: role.UpdatedAt}
}

func toRuleView(rule AccessRule) ruleView {
	return ruleView{
		ID: rule.ID, RoleID: rule.RoleID, ElementID: rule.ElementID,
		Read: rule.CanRead, ReadAll: rule.CanReadAll, Create: rule.CanCreate,
		Update: rule.CanUpdate, UpdateAll: rule.CanUpdateAll,
		Delete: rule.CanDelete, DeleteAll: rule.CanDeleteAll,
	}
}

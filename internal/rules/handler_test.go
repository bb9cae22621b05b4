package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/shared"
)

// actorInjector stands in for the session guard, planting a fixed actor.
func actorInjector(actor *shared.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor != nil {
				r = r.WithContext(shared.ContextWithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminFixture struct {
	srv  *httptest.Server
	repo *memoryRulesRepo
}

// newAdminServer mounts the admin API with the matrix seeded so that userID 1
// holds full grants on the core elements and userID 2 holds none.
func newAdminServer(t *testing.T, actor *shared.Actor) adminFixture {
	t.Helper()
	repo := newMemoryRulesRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	admin, err := svc.CreateRole(ctx, 0, "admin", "")
	require.NoError(t, err)
	for _, code := range shared.CoreElements() {
		el, err := svc.CreateElement(ctx, code, code, "")
		require.NoError(t, err)
		_, err = svc.CreateRule(ctx, 0, admin.ID, el.ID, Grants{
			CanRead: true, CanReadAll: true, CanCreate: true,
			CanUpdate: true, CanUpdateAll: true, CanDelete: true, CanDeleteAll: true,
		})
		require.NoError(t, err)
	}
	require.NoError(t, svc.AssignRole(ctx, 1, admin.ID))

	engine := authz.NewEngine(svc)
	handler := NewHandler(nil, svc, authz.Middleware{Engine: engine})

	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(actorInjector(actor))
		handler.MountRoutes(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return adminFixture{srv: srv, repo: repo}
}

func adminDo(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAdminRoutesRejectAnonymous(t *testing.T) {
	fx := newAdminServer(t, nil)

	resp := adminDo(t, http.MethodGet, fx.srv.URL+"/admin/roles", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRejectUngrantedActor(t *testing.T) {
	fx := newAdminServer(t, &shared.Actor{UserID: 2, IsActive: true})

	resp := adminDo(t, http.MethodGet, fx.srv.URL+"/admin/roles", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = adminDo(t, http.MethodPost, fx.srv.URL+"/admin/roles", map[string]any{"name": "intruder"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminRoutesRejectInactiveActor(t *testing.T) {
	fx := newAdminServer(t, &shared.Actor{UserID: 1, IsActive: false})

	resp := adminDo(t, http.MethodGet, fx.srv.URL+"/admin/roles", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminRoleLifecycle(t *testing.T) {
	fx := newAdminServer(t, &shared.Actor{UserID: 1, IsActive: true})
	base := fx.srv.URL + "/admin"

	resp := adminDo(t, http.MethodPost, base+"/roles", map[string]any{
		"name": "editor", "description": "writes articles",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var role roleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&role))
	require.Equal(t, "editor", role.Name)

	resp = adminDo(t, http.MethodPost, base+"/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = adminDo(t, http.MethodGet, base+"/roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roles []roleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roles))
	require.Len(t, roles, 2) // admin + editor
}

func TestAdminRuleLifecycle(t *testing.T) {
	fx := newAdminServer(t, &shared.Actor{UserID: 1, IsActive: true})
	base := fx.srv.URL + "/admin"

	resp := adminDo(t, http.MethodPost, base+"/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var role roleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&role))

	resp = adminDo(t, http.MethodPost, base+"/elements", map[string]any{
		"code": "article", "name": "Articles",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var el elementView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&el))

	payload := map[string]any{
		"role_id": role.ID, "element_id": el.ID,
		"read": true, "read_all": true, "create": true, "update": true,
	}
	resp = adminDo(t, http.MethodPost, base+"/rules", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rule ruleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
	require.True(t, rule.Update)
	require.False(t, rule.UpdateAll)

	// The (role, element) pair is unique.
	resp = adminDo(t, http.MethodPost, base+"/rules", payload)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = adminDo(t, http.MethodDelete, base+"/rules/"+itoa(rule.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = adminDo(t, http.MethodDelete, base+"/rules/"+itoa(rule.ID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminAssignRole(t *testing.T) {
	fx := newAdminServer(t, &shared.Actor{UserID: 1, IsActive: true})
	base := fx.srv.URL + "/admin"

	resp := adminDo(t, http.MethodPost, base+"/roles", map[string]any{"name": "editor"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var role roleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&role))

	resp = adminDo(t, http.MethodPost, base+"/users/7/roles", map[string]any{"role_id": role.ID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Contains(t, fx.repo.members[7], role.ID)

	resp = adminDo(t, http.MethodPost, base+"/users/7/roles", map[string]any{"role_id": int64(999)})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = adminDo(t, http.MethodDelete, base+"/users/7/roles/"+itoa(role.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, fx.repo.members[7])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

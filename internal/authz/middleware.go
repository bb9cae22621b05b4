package authz

import (
	"log/slog"
	"net/http"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. It assumes the
// session guard already placed the actor in request context.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// Require allows the request through iff the actor may perform action on the
// element acting on records of other users (the _all variant for
// read/update/delete).
func (m Middleware) Require(elementCode string, action Action) func(http.Handler) http.Handler {
	return m.guard(elementCode, action, false)
}

// RequireOwn is the variant for endpoints operating only on the actor's own
// records, where the plain permission flag suffices.
func (m Middleware) RequireOwn(elementCode string, action Action) func(http.Handler) http.Handler {
	return m.guard(elementCode, action, true)
}

func (m Middleware) guard(elementCode string, action Action, ownRecord bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			decision, err := m.Engine.Authorize(r.Context(), *actor, elementCode, action, ownRecord)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorize",
						slog.String("element", elementCode),
						slog.String("action", string(action)),
						slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if decision != Allow {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

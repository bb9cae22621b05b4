package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// authScheme is the Authorization header scheme carrying the session token.
const authScheme = "Session"

// ActorSource resolves a user ID to the actor details the guard stores in
// request context.
type ActorSource interface {
	FindActor(ctx context.Context, userID int64) (shared.Actor, error)
}

// Guard authenticates requests from the Authorization header. It is composed
// explicitly at the router boundary with its dependencies injected.
type Guard struct {
	Sessions *Service
	Users    ActorSource
	Logger   *slog.Logger
}

// RequireAuth rejects requests without a live session and stores the resolved
// actor in the request context for downstream authorization.
func (g Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		sess, err := g.Sessions.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, shared.ErrInvalidSession) || errors.Is(err, shared.ErrSessionExpired) {
				httpx.RespondError(w, err)
				return
			}
			if g.Logger != nil {
				g.Logger.Error("resolve session", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		actor, err := g.Users.FindActor(r.Context(), sess.UserID)
		if err != nil {
			if g.Logger != nil {
				g.Logger.Error("load actor", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		if !actor.IsActive {
			httpx.RespondError(w, shared.ErrInactiveAccount)
			return
		}
		actor.SessionID = sess.ID
		actor.Token = sess.Token
		ctx := shared.ContextWithActor(r.Context(), &actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, authScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

package httpx

import (
	"errors"
	"net/http"

	"github.com/warden-auth/warden/internal/shared"
)

// RespondError maps the domain error taxonomy to RFC7807 responses. Transport
// mapping lives here and only here; services return plain sentinel errors.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", err.Error())
	case errors.Is(err, shared.ErrInvalidSession), errors.Is(err, shared.ErrSessionExpired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrInactiveAccount):
		Problem(w, http.StatusForbidden, "Inactive Account", err.Error())
	case errors.Is(err, shared.ErrDuplicateEmail), errors.Is(err, shared.ErrDuplicateRule):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidRole), errors.Is(err, shared.ErrPasswordMismatch):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrStoreTimeout):
		Problem(w, http.StatusGatewayTimeout, "Store Timeout", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package session

import "time"

// Session is an opaque bearer credential bound to exactly one user. Sessions
// are never deleted on logout; invalidation moves expires_at to the present,
// preserving audit history.
type Session struct {
	ID        string
	UserID    int64
	Token     string
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the session is still valid at the given instant.
// Once expired a session never reactivates.
func (s Session) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

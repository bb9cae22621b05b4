package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/shared"
)

// tokenBytes yields 256 bits of entropy per token.
const tokenBytes = 32

// createAttempts bounds the token-collision retry loop.
const createAttempts = 3

// Service issues, resolves, and invalidates bearer sessions.
type Service struct {
	repo  Repository
	cache *Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, cache *Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, now: time.Now}
}

// TTL exposes the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Create issues a session for the user. TTL is fixed at issuance; there is no
// sliding expiration. Token collisions are retried a bounded number of times
// before surfacing a persistence failure.
func (s *Service) Create(ctx context.Context, userID int64, ip, ua string) (Session, error) {
	now := s.now().UTC()
	for attempt := 0; attempt < createAttempts; attempt++ {
		token, err := newToken()
		if err != nil {
			return Session{}, fmt.Errorf("session: generate token: %w", err)
		}
		sess := Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			Token:     token,
			IP:        ip,
			UserAgent: ua,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		err = s.repo.Create(ctx, sess)
		if err == nil {
			_ = s.cache.Put(ctx, sess)
			return sess, nil
		}
		if errors.Is(err, errTokenTaken) {
			continue
		}
		if errors.Is(err, shared.ErrStoreTimeout) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return Session{}, fmt.Errorf("%w: token collisions exhausted retries", shared.ErrPersistence)
}

// Resolve returns the session bound to token. Unknown tokens yield
// ErrInvalidSession, known but expired ones ErrSessionExpired. Expiry is never
// extended here.
func (s *Service) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, shared.ErrInvalidSession
	}
	now := s.now()
	if sess, ok := s.cache.Get(ctx, token); ok {
		if !sess.Active(now) {
			return Session{}, shared.ErrSessionExpired
		}
		return sess, nil
	}
	sess, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, shared.ErrInvalidSession
		}
		return Session{}, err
	}
	if !sess.Active(now) {
		return Session{}, shared.ErrSessionExpired
	}
	_ = s.cache.Put(ctx, sess)
	return sess, nil
}

// Invalidate expires the session immediately. Invalidating an already-expired
// or unknown session is a no-op success.
func (s *Service) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Invalidate(ctx, token, s.now().UTC()); err != nil {
		return err
	}
	return s.cache.Del(ctx, token)
}

// InvalidateAllForUser expires every live session of the user so deactivation
// leaves no usable credential behind.
func (s *Service) InvalidateAllForUser(ctx context.Context, userID int64) error {
	tokens, err := s.repo.InvalidateAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return err
	}
	return s.cache.Del(ctx, tokens...)
}

// PurgeExpired deletes sessions that expired more than olderThan ago,
// returning the number of rows removed.
func (s *Service) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	return s.repo.DeleteExpiredBefore(ctx, cutoff)
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

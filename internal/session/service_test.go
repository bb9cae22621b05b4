package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/shared"
)

type memorySessionRepo struct {
	sessions map[string]Session // keyed by token
	failures int                // Create returns errTokenTaken this many times
	err      error              // overrides all operations when set
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]Session)}
}

func (r *memorySessionRepo) Create(ctx context.Context, sess Session) error {
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errTokenTaken
	}
	if _, ok := r.sessions[sess.Token]; ok {
		return errTokenTaken
	}
	r.sessions[sess.Token] = sess
	return nil
}

func (r *memorySessionRepo) FindByToken(ctx context.Context, token string) (Session, error) {
	if r.err != nil {
		return Session{}, r.err
	}
	sess, ok := r.sessions[token]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	return sess, nil
}

func (r *memorySessionRepo) Invalidate(ctx context.Context, token string, now time.Time) error {
	if r.err != nil {
		return r.err
	}
	sess, ok := r.sessions[token]
	if !ok || !sess.ExpiresAt.After(now) {
		return nil
	}
	sess.ExpiresAt = now
	r.sessions[token] = sess
	return nil
}

func (r *memorySessionRepo) InvalidateAllForUser(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	var tokens []string
	for token, sess := range r.sessions {
		if sess.UserID == userID && sess.ExpiresAt.After(now) {
			sess.ExpiresAt = now
			r.sessions[token] = sess
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (r *memorySessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var removed int64
	for token, sess := range r.sessions {
		if sess.ExpiresAt.Before(cutoff) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, 24*time.Hour)
}

func TestCreateIssuesOpaqueToken(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 42, "203.0.113.9", "curl/8.0")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Len(t, sess.Token, 43) // 32 bytes, base64 raw-url encoded
	require.Equal(t, int64(42), sess.UserID)
	require.Equal(t, sess.CreatedAt.Add(24*time.Hour), sess.ExpiresAt)

	other, err := svc.Create(ctx, 42, "", "")
	require.NoError(t, err)
	require.NotEqual(t, sess.Token, other.Token)
}

func TestCreateRetriesTokenCollision(t *testing.T) {
	repo := newMemorySessionRepo()
	repo.failures = 2
	svc := newTestService(repo)

	sess, err := svc.Create(context.Background(), 1, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemorySessionRepo()
	repo.failures = createAttempts
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 1, "", "")
	require.ErrorIs(t, err, shared.ErrPersistence)
}

func TestCreatePropagatesStoreTimeout(t *testing.T) {
	repo := newMemorySessionRepo()
	repo.err = shared.ErrStoreTimeout
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 1, "", "")
	require.ErrorIs(t, err, shared.ErrStoreTimeout)
}

func TestResolveRoundTrip(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.Token, got.Token)
	require.Equal(t, int64(5), got.UserID)
}

func TestResolveUnknownToken(t *testing.T) {
	svc := newTestService(newMemorySessionRepo())

	_, err := svc.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, shared.ErrInvalidSession)

	_, err = svc.Resolve(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrInvalidSession)
}

func TestResolveExpiredToken(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return sess.ExpiresAt.Add(time.Second) }

	_, err = svc.Resolve(ctx, sess.Token)
	require.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestInvalidateEndsSession(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return sess.CreatedAt.Add(time.Minute) }
	require.NoError(t, svc.Invalidate(ctx, sess.Token))

	_, err = svc.Resolve(ctx, sess.Token)
	require.ErrorIs(t, err, shared.ErrSessionExpired)

	// Row survives invalidation for audit history.
	require.Contains(t, repo.sessions, sess.Token)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, sess.Token))
	require.NoError(t, svc.Invalidate(ctx, sess.Token))
	require.NoError(t, svc.Invalidate(ctx, "unknown"))
	require.NoError(t, svc.Invalidate(ctx, ""))
}

func TestInvalidateAllForUser(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)
	bystander, err := svc.Create(ctx, 6, "", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return first.CreatedAt.Add(time.Minute) }
	require.NoError(t, svc.InvalidateAllForUser(ctx, 5))

	_, err = svc.Resolve(ctx, first.Token)
	require.ErrorIs(t, err, shared.ErrSessionExpired)
	_, err = svc.Resolve(ctx, second.Token)
	require.ErrorIs(t, err, shared.ErrSessionExpired)

	got, err := svc.Resolve(ctx, bystander.Token)
	require.NoError(t, err)
	require.Equal(t, int64(6), got.UserID)
}

func TestPurgeExpiredHonorsRetention(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 5, "", "")
	require.NoError(t, err)

	// Expired but within retention: kept.
	svc.now = func() time.Time { return sess.ExpiresAt.Add(time.Hour) }
	removed, err := svc.PurgeExpired(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)

	// Past retention: removed.
	svc.now = func() time.Time { return sess.ExpiresAt.Add(49 * time.Hour) }
	removed, err = svc.PurgeExpired(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
	require.Empty(t, repo.sessions)
}

func TestCacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client)
	ctx := context.Background()

	sess := Session{
		ID:        "a8c4f9d2-0000-0000-0000-000000000001",
		UserID:    7,
		Token:     "tok-1",
		IP:        "203.0.113.9",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, cache.Put(ctx, sess))

	got, ok := cache.Get(ctx, sess.Token)
	require.True(t, ok)
	require.Equal(t, sess.UserID, got.UserID)
	require.Equal(t, sess.IP, got.IP)
	require.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, cache.Del(ctx, sess.Token))
	_, ok = cache.Get(ctx, sess.Token)
	require.False(t, ok)
}

func TestCacheSkipsExpiredSessions(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client)
	ctx := context.Background()

	sess := Session{Token: "tok-expired", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, cache.Put(ctx, sess))

	_, ok := cache.Get(ctx, sess.Token)
	require.False(t, ok)
}

func TestNilCacheIsNoOp(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, Session{Token: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	_, ok := cache.Get(ctx, "x")
	require.False(t, ok)
	require.NoError(t, cache.Del(ctx, "x"))
}

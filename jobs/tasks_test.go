package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/session"
	"github.com/warden-auth/warden/internal/shared"
)

type fakeSessionRepo struct {
	cutoff  time.Time
	removed int64
}

func (r *fakeSessionRepo) Create(ctx context.Context, sess session.Session) error { return nil }

func (r *fakeSessionRepo) FindByToken(ctx context.Context, token string) (session.Session, error) {
	return session.Session{}, shared.ErrNotFound
}

func (r *fakeSessionRepo) Invalidate(ctx context.Context, token string, now time.Time) error {
	return nil
}

func (r *fakeSessionRepo) InvalidateAllForUser(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	return nil, nil
}

func (r *fakeSessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return r.removed, nil
}

func TestSessionPurgeHandler(t *testing.T) {
	repo := &fakeSessionRepo{removed: 3}
	sessions := session.NewService(repo, nil, 24*time.Hour)

	task, err := NewSessionPurgeTask(720 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, TaskSessionPurge, task.Type())

	handler := NewSessionPurgeHandler(sessions, nil)
	require.NoError(t, handler(context.Background(), task))
	require.WithinDuration(t, time.Now().Add(-720*time.Hour), repo.cutoff, time.Minute)
}

func TestSessionPurgeHandlerRejectsBadPayload(t *testing.T) {
	sessions := session.NewService(&fakeSessionRepo{}, nil, 24*time.Hour)
	handler := NewSessionPurgeHandler(sessions, nil)

	err := handler(context.Background(), asynq.NewTask(TaskSessionPurge, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRetentionPayloadRoundTrip(t *testing.T) {
	task, err := NewAuditCleanupTask(90 * 24 * time.Hour)
	require.NoError(t, err)

	var payload RetentionPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 90*24*time.Hour, payload.Retention)
}

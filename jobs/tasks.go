package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warden-auth/warden/internal/session"
	"github.com/warden-auth/warden/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge removes session rows expired past retention.
	TaskSessionPurge = "session:purge"
	// TaskAuditCleanup trims audit rows past retention.
	TaskAuditCleanup = "audit:cleanup"
)

// RetentionPayload carries the retention window for cleanup tasks.
type RetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewSessionPurgeTask constructs the session purge task.
func NewSessionPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}

// NewAuditCleanupTask constructs the audit cleanup task.
func NewAuditCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}

// NewSessionPurgeHandler processes TaskSessionPurge tasks. Sessions are kept
// after expiry for audit history; the purge enforces the retention window.
func NewSessionPurgeHandler(sessions *session.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := sessions.PurgeExpired(ctx, payload.Retention)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("purged expired sessions", slog.Int64("removed", removed))
		}
		return nil
	}
}

// NewAuditCleanupHandler processes TaskAuditCleanup tasks.
func NewAuditCleanupHandler(audit *shared.AuditLogger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := audit.Cleanup(ctx, payload.Retention); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("trimmed audit log")
		}
		return nil
	}
}

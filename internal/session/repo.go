package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/shared"
)

// errTokenTaken signals a token collision on insert. The service retries with
// a fresh token; callers outside this package never see it.
var errTokenTaken = errors.New("session: token already exists")

// Repository defines persistence operations for sessions.
type Repository interface {
	Create(ctx context.Context, sess Session) error
	FindByToken(ctx context.Context, token string) (Session, error)
	Invalidate(ctx context.Context, token string, now time.Time) error
	InvalidateAllForUser(ctx context.Context, userID int64, now time.Time) ([]string, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a PostgreSQL repository with bounded call timeouts.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, timeout: timeout}
}

func (r *PGRepository) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func mapStoreErr(op string, err error) error {
	if db.IsTimeout(err) {
		return fmt.Errorf("session: %s: %w", op, shared.ErrStoreTimeout)
	}
	return fmt.Errorf("session: %s: %w", op, err)
}

// Create inserts a new session row.
func (r *PGRepository) Create(ctx context.Context, sess Session) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, token, ip, user_agent, created_at, expires_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		sess.ID, sess.UserID, sess.Token, sess.IP, sess.UserAgent, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		if db.IsUniqueViolation(err, "sessions_token_key") {
			return errTokenTaken
		}
		return mapStoreErr("create", err)
	}
	return nil
}

// FindByToken fetches a session by its opaque token.
func (r *PGRepository) FindByToken(ctx context.Context, token string) (Session, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var sess Session
	var ip, ua *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, token, ip, user_agent, created_at, expires_at FROM sessions WHERE token = $1`,
		token).Scan(&sess.ID, &sess.UserID, &sess.Token, &ip, &ua, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, mapStoreErr("find by token", err)
	}
	if ip != nil {
		sess.IP = *ip
	}
	if ua != nil {
		sess.UserAgent = *ua
	}
	return sess, nil
}

// Invalidate moves expires_at to now for a still-active session. Expired
// sessions are left untouched, which makes the operation idempotent.
func (r *PGRepository) Invalidate(ctx context.Context, token string, now time.Time) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE token = $1 AND expires_at > $2`,
		token, now)
	if err != nil {
		return mapStoreErr("invalidate", err)
	}
	return nil
}

// InvalidateAllForUser expires every live session of a user and returns the
// affected tokens so caches can be evicted.
func (r *PGRepository) InvalidateAllForUser(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE user_id = $1 AND expires_at > $2 RETURNING token`,
		userID, now)
	if err != nil {
		return nil, mapStoreErr("invalidate all", err)
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, mapStoreErr("invalidate all", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("invalidate all", err)
	}
	return tokens, nil
}

// DeleteExpiredBefore removes session rows that expired before cutoff. Used by
// the retention job, never by request handling.
func (r *PGRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, mapStoreErr("delete expired", err)
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)

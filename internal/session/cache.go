package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "warden:session:"

// Cache keeps resolved sessions in Redis keyed by token. Entries carry the
// remaining session lifetime as their TTL, so a cache hit can never outlive
// the session itself. All methods tolerate a nil receiver so the service runs
// without Redis in tests.
type Cache struct {
	client *redis.Client
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

type cachedSession struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Put stores the session. Sessions already expired are skipped.
func (c *Cache) Put(ctx context.Context, sess Session) error {
	if c == nil || c.client == nil {
		return nil
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(cachedSession{
		ID:        sess.ID,
		UserID:    sess.UserID,
		IP:        sess.IP,
		UserAgent: sess.UserAgent,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+sess.Token, payload, ttl).Err()
}

// Get looks the token up, reporting a miss for unknown or unreadable entries.
func (c *Cache) Get(ctx context.Context, token string) (Session, bool) {
	if c == nil || c.client == nil {
		return Session{}, false
	}
	payload, err := c.client.Get(ctx, cacheKeyPrefix+token).Bytes()
	if err != nil {
		return Session{}, false
	}
	var stored cachedSession
	if err := json.Unmarshal(payload, &stored); err != nil {
		return Session{}, false
	}
	return Session{
		ID:        stored.ID,
		UserID:    stored.UserID,
		Token:     token,
		IP:        stored.IP,
		UserAgent: stored.UserAgent,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, true
}

// Del evicts tokens, ignoring missing keys.
func (c *Cache) Del(ctx context.Context, tokens ...string) error {
	if c == nil || c.client == nil || len(tokens) == 0 {
		return nil
	}
	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = cacheKeyPrefix + token
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

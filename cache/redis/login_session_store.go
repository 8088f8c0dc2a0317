package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/planauth/cache"
	"github.com/redis/go-redis/v9"
)

// LoginSessionStore implements cache.LoginSessionStore using Redis, so several
// portal instances can share browser logins.
type LoginSessionStore struct {
	client redis.UniversalClient
	prefix string // Optional prefix for keys
	ttl    time.Duration
}

// NewLoginSessionStore creates a new [LoginSessionStore]. Sessions without their
// own expiry live for ttl.
func NewLoginSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *LoginSessionStore {
	return &LoginSessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// redisKey returns the Redis key for a given session id
func (r *LoginSessionStore) redisKey(id string) string {
	return fmt.Sprintf("%s:login_session:%s", r.prefix, id)
}

// Save stores the session until its expiry.
func (r *LoginSessionStore) Save(ctx context.Context, session *cache.LoginSession) error {
	ttl := r.ttl
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
	}
	if ttl <= 0 {
		return r.Delete(ctx, session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal login session: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store login session in Redis: %w", err)
	}
	return nil
}

// Get retrieves a session, or cache.ErrLoginSessionNotFound.
func (r *LoginSessionStore) Get(ctx context.Context, id string) (*cache.LoginSession, error) {
	data, err := r.client.Get(ctx, r.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrLoginSessionNotFound
		}
		return nil, fmt.Errorf("failed to load login session from Redis: %w", err)
	}

	var session cache.LoginSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal login session: %w", err)
	}
	return &session, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *LoginSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.redisKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete login session from Redis: %w", err)
	}
	return nil
}

var _ cache.LoginSessionStore = (*LoginSessionStore)(nil)

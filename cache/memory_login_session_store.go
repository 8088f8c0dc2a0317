package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryLoginSessionStore implements LoginSessionStore using ttlcache.
type MemoryLoginSessionStore struct {
	cache *ttlcache.Cache[string, *LoginSession]
}

// NewMemoryLoginSessionStore creates an in-memory store with automatic cleanup.
// Sessions live for ttl unless their own ExpiresAt is sooner.
func NewMemoryLoginSessionStore(ttl time.Duration) *MemoryLoginSessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *LoginSession](ttl),
		ttlcache.WithDisableTouchOnHit[string, *LoginSession](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryLoginSessionStore{
		cache: cache,
	}
}

// Save implements LoginSessionStore.Save.
func (s *MemoryLoginSessionStore) Save(_ context.Context, session *LoginSession) error {
	ttl := ttlcache.DefaultTTL
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			s.cache.Delete(session.ID)
			return nil
		}
	}
	s.cache.Set(session.ID, session, ttl)
	return nil
}

// Get implements LoginSessionStore.Get.
func (s *MemoryLoginSessionStore) Get(_ context.Context, id string) (*LoginSession, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrLoginSessionNotFound
	}
	return item.Value(), nil
}

// Delete implements LoginSessionStore.Delete.
func (s *MemoryLoginSessionStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryLoginSessionStore) Close() {
	s.cache.Stop()
}

var _ LoginSessionStore = (*MemoryLoginSessionStore)(nil)

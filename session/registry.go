// Package session keeps the in-memory registry of live bearer sessions,
// together with the revocation list and the portal resolution cache that
// must change atomically with it.
//
// All state is process local and guarded by a single mutex. Pruning is
// done lazily at the start of each operation; nothing runs in the
// background.
package session

import (
	"sync"
	"time"

	"github.com/pilab-dev/planauth/cache"
	"github.com/pilab-dev/planauth/clock"
	"github.com/pilab-dev/planauth/errors"
	"github.com/pilab-dev/planauth/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultCapacity    = 1000
	// MinCapacity is the floor applied to configured capacities.
	MinCapacity = 100
)

// Session is the registry's view of one bearer token.
type Session struct {
	Token     string
	SubjectID string
	ExpiresAt time.Time
	LastSeen  time.Time
}

// IdleDeadline is the instant after which the session is idle-expired.
func (s *Session) IdleDeadline(idle time.Duration) time.Time {
	return s.LastSeen.Add(idle)
}

// Options configures a Registry.
type Options struct {
	IdleTimeout time.Duration
	// Capacity bounds the number of sessions. It is used as given; callers
	// that read it from configuration apply MinCapacity themselves.
	Capacity int
	Clock    clock.Clock
	// ExpiryHint recovers the expiry of a token the registry does not hold,
	// so Revoke can bound its revocation entry. It may be nil.
	ExpiryHint func(token string) (time.Time, bool)
	// PortalCacheCapacity bounds the portal resolution cache. Zero means
	// the same as Capacity.
	PortalCacheCapacity int
}

// Registry maps tokens to sessions under a capacity bound.
type Registry struct {
	mu sync.Mutex

	idle       time.Duration
	capacity   int
	clock      clock.Clock
	expiryHint func(string) (time.Time, bool)

	sessions map[string]*Session
	revoked  *cache.RevocationList
	portal   *cache.PortalCache
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.PortalCacheCapacity <= 0 {
		opts.PortalCacheCapacity = opts.Capacity
	}

	return &Registry{
		idle:       opts.IdleTimeout,
		capacity:   opts.Capacity,
		clock:      opts.Clock,
		expiryHint: opts.ExpiryHint,
		sessions:   make(map[string]*Session),
		revoked:    cache.NewRevocationList(),
		portal:     cache.NewPortalCache(uint64(opts.PortalCacheCapacity)),
	}
}

// IdleTimeout returns the configured idle window.
func (r *Registry) IdleTimeout() time.Duration {
	return r.idle
}

// Register stores a session for token owned by subjectID. It overwrites
// any existing entry, clears a stale revocation for the token and, when
// the registry is over capacity, evicts the least-recently-seen session.
// A token already past expiresAt is refused with ErrSessionExpired.
func (r *Registry) Register(subjectID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.pruneLocked(now, "")

	if !expiresAt.After(now) {
		delete(r.sessions, token)
		r.observeLocked()
		return errors.Wrap(errors.ErrSessionExpired, "session expiry is not in the future")
	}

	r.storeLocked(subjectID, token, expiresAt, now)
	return nil
}

// ValidateAndTouch checks that token holds a live session owned by
// subjectID and extends its idle window.
//
// When the registry has no entry for token and expiresAt is given, the
// session is created on the spot. This lets a valid token minted
// elsewhere start a session without an explicit Register.
func (r *Registry) ValidateAndTouch(token, subjectID string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.pruneLocked(now, token)

	if r.revoked.Active(token, now) {
		return errors.Wrap(errors.ErrSessionInactive, "token has been revoked")
	}

	sess, ok := r.sessions[token]
	if !ok {
		if expiresAt == nil {
			return errors.Wrap(errors.ErrSessionInactive, "no session for token")
		}
		if !expiresAt.After(now) {
			return errors.Wrap(errors.ErrSessionExpired, "token expiry has passed")
		}
		r.storeLocked(subjectID, token, *expiresAt, now)
		return nil
	}

	if sess.SubjectID != subjectID {
		log.Warn().
			Str("token", cache.Fingerprint(token)).
			Str("session_subject", sess.SubjectID).
			Str("claimed_subject", subjectID).
			Msg("Session subject mismatch")
		return errors.Wrap(errors.ErrSessionInactive, "session belongs to another subject")
	}

	if r.expiredLocked(sess, now) {
		r.dropLocked(sess, now)
		r.observeLocked()
		return errors.Wrap(errors.ErrSessionExpired, "session aged out")
	}

	sess.LastSeen = now
	return nil
}

// Revoke ends the session for token and denies the token until its
// expiry. For tokens the registry does not hold, the expiry is recovered
// through the ExpiryHint, falling back to one idle window from now.
// A token that is already denied keeps its horizon.
func (r *Registry) Revoke(token string) {
	if token == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.pruneLocked(now, token)
	r.portal.Forget(token)

	if sess, ok := r.sessions[token]; ok {
		r.dropLocked(sess, now)
		r.observeLocked()
		return
	}

	if existing, ok := r.revoked.Horizon(token); ok && existing.After(now) {
		return
	}

	horizon := now.Add(r.idle)
	if r.expiryHint != nil {
		if exp, ok := r.expiryHint(token); ok {
			horizon = exp
		}
	}
	r.revoked.Remember(token, horizon, now)
	r.observeLocked()
}

// RevokeAll ends every session owned by subjectID and returns how many
// were removed.
func (r *Registry) RevokeAll(subjectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.pruneLocked(now, "")
	removed := 0
	for _, sess := range r.sessions {
		if sess.SubjectID != subjectID {
			continue
		}
		r.portal.Forget(sess.Token)
		r.dropLocked(sess, now)
		removed++
	}
	r.portal.ForgetSubject(subjectID)
	r.observeLocked()

	return removed
}

// Lookup returns a copy of the session for token, without touching it.
func (r *Registry) Lookup(token string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[token]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// IsRevoked reports whether token is currently denied.
func (r *Registry) IsRevoked(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.revoked.Active(token, r.clock.Now())
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// CachedPortalSubject returns the cached resolution of a portal token.
// A stale entry is removed.
func (r *Registry) CachedPortalSubject(token string) (string, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.portal.Lookup(token, r.clock.Now())
	if !ok {
		return "", time.Time{}, false
	}
	return entry.SubjectID, entry.ExpiresAt, true
}

// RememberPortalSubject caches that token resolved to subjectID until expiresAt.
func (r *Registry) RememberPortalSubject(token, subjectID string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.portal.Remember(token, cache.PortalEntry{SubjectID: subjectID, ExpiresAt: expiresAt}, r.clock.Now())
}

// ForgetPortalSubject drops the cached resolution of token.
func (r *Registry) ForgetPortalSubject(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.portal.Forget(token)
}

// storeLocked inserts or overwrites the session and enforces capacity.
func (r *Registry) storeLocked(subjectID, token string, expiresAt, now time.Time) {
	r.revoked.Forget(token)
	r.sessions[token] = &Session{
		Token:     token,
		SubjectID: subjectID,
		ExpiresAt: expiresAt,
		LastSeen:  now,
	}

	for len(r.sessions) > r.capacity {
		victim := r.leastRecentlySeenLocked(token)
		if victim == nil {
			break
		}
		log.Debug().
			Str("token", cache.Fingerprint(victim.Token)).
			Str("subject", victim.SubjectID).
			Msg("Evicting least recently seen session")
		r.dropLocked(victim, now)
		metrics.SessionEvictionsTotal.Inc()
	}
	r.observeLocked()
}

// leastRecentlySeenLocked picks the eviction victim, never keep.
func (r *Registry) leastRecentlySeenLocked(keep string) *Session {
	var victim *Session
	for token, sess := range r.sessions {
		if token == keep {
			continue
		}
		if victim == nil || sess.LastSeen.Before(victim.LastSeen) {
			victim = sess
		}
	}
	return victim
}

// pruneLocked drops every aged-out session except skip, then every
// revocation whose horizon passed. skip is left for the caller to judge
// so it can report the precise outcome for that token.
func (r *Registry) pruneLocked(now time.Time, skip string) {
	for token, sess := range r.sessions {
		if token == skip {
			continue
		}
		if r.expiredLocked(sess, now) {
			r.dropLocked(sess, now)
		}
	}
	r.revoked.Prune(now)
	r.observeLocked()
}

func (r *Registry) expiredLocked(sess *Session, now time.Time) bool {
	return !now.Before(sess.ExpiresAt) || !now.Before(sess.IdleDeadline(r.idle))
}

// dropLocked removes the session and denies its token until it expires.
func (r *Registry) dropLocked(sess *Session, now time.Time) {
	delete(r.sessions, sess.Token)
	r.revoked.Remember(sess.Token, sess.ExpiresAt, now)
}

func (r *Registry) observeLocked() {
	metrics.ActiveSessionsGauge.Set(float64(len(r.sessions)))
	metrics.RevokedTokensGauge.Set(float64(r.revoked.Len()))
}

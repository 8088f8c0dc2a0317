package session_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pilab-dev/planauth/clock"
	"github.com/pilab-dev/planauth/errors"
	"github.com/pilab-dev/planauth/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T, capacity int) (*session.Registry, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(t0)
	reg := session.New(session.Options{
		IdleTimeout: 30 * time.Minute,
		Capacity:    capacity,
		Clock:       clk,
	})
	return reg, clk
}

func ptr(t time.Time) *time.Time { return &t }

func TestRegistry_ValidWithinBothWindows(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	require.NoError(t, reg.Register("user-1", "tok", t0.Add(time.Hour)))

	for i := 0; i < 5; i++ {
		clk.Advance(10 * time.Minute)
		require.NoError(t, reg.ValidateAndTouch("tok", "user-1", nil), "touch %d", i)
	}

	// t0+50m; absolute expiry reached ten minutes later.
	clk.Advance(10 * time.Minute)
	err := reg.ValidateAndTouch("tok", "user-1", nil)
	assert.ErrorIs(t, err, errors.ErrSessionExpired)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_IdleTimeoutScenario(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	require.NoError(t, reg.Register("user-1", "tok", t0.Add(24*time.Hour)))

	clk.Advance(29 * time.Minute)
	require.NoError(t, reg.ValidateAndTouch("tok", "user-1", nil))

	clk.Advance(31 * time.Minute)
	err := reg.ValidateAndTouch("tok", "user-1", nil)
	assert.ErrorIs(t, err, errors.ErrSessionExpired)
	assert.Equal(t, errors.KindSessionExpired, errors.KindOf(err))

	// The aged-out token is now denied rather than unknown.
	assert.True(t, reg.IsRevoked("tok"))
	err = reg.ValidateAndTouch("tok", "user-1", ptr(t0.Add(24*time.Hour)))
	assert.ErrorIs(t, err, errors.ErrSessionInactive)
}

func TestRegistry_IdleDeadlineIsExclusive(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	require.NoError(t, reg.Register("user-1", "tok", t0.Add(24*time.Hour)))

	clk.Advance(30 * time.Minute)
	assert.ErrorIs(t, reg.ValidateAndTouch("tok", "user-1", nil), errors.ErrSessionExpired)
}

func TestRegistry_CapacityScenario(t *testing.T) {
	reg, clk := newRegistry(t, 2)
	exp := t0.Add(time.Hour)

	require.NoError(t, reg.Register("user-a", "A", exp))
	clk.Advance(time.Second)
	require.NoError(t, reg.Register("user-b", "B", exp))
	clk.Advance(time.Second)
	require.NoError(t, reg.Register("user-c", "C", exp))

	assert.Equal(t, 2, reg.Len())
	assert.NoError(t, reg.ValidateAndTouch("B", "user-b", nil))
	assert.NoError(t, reg.ValidateAndTouch("C", "user-c", nil))

	err := reg.ValidateAndTouch("A", "user-a", nil)
	assert.ErrorIs(t, err, errors.ErrSessionInactive)
	assert.True(t, reg.IsRevoked("A"))

	// A supplied expiry does not resurrect an evicted token.
	err = reg.ValidateAndTouch("A", "user-a", ptr(exp))
	assert.ErrorIs(t, err, errors.ErrSessionInactive)
}

func TestRegistry_EvictsExactlyOneLeastRecentlySeen(t *testing.T) {
	reg, clk := newRegistry(t, 3)
	exp := t0.Add(time.Hour)

	for _, tok := range []string{"t1", "t2", "t3"} {
		require.NoError(t, reg.Register("user", tok, exp))
		clk.Advance(time.Second)
	}

	// t1 becomes the most recently seen, so t2 is the oldest.
	require.NoError(t, reg.ValidateAndTouch("t1", "user", nil))
	clk.Advance(time.Second)

	require.NoError(t, reg.Register("user", "t4", exp))
	assert.Equal(t, 3, reg.Len())

	_, ok := reg.Lookup("t2")
	assert.False(t, ok, "t2 should be the only eviction")
	for _, tok := range []string{"t1", "t3", "t4"} {
		_, ok := reg.Lookup(tok)
		assert.True(t, ok, "%s should remain", tok)
	}
}

func TestRegistry_NeverEvictsJustInserted(t *testing.T) {
	reg, _ := newRegistry(t, 1)
	exp := t0.Add(time.Hour)

	// Both entries share the same last-seen instant.
	require.NoError(t, reg.Register("user", "old", exp))
	require.NoError(t, reg.Register("user", "new", exp))

	_, ok := reg.Lookup("new")
	assert.True(t, ok)
	_, ok = reg.Lookup("old")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_SubjectMismatch(t *testing.T) {
	reg, _ := newRegistry(t, 10)
	exp := t0.Add(time.Hour)
	require.NoError(t, reg.Register("user-1", "tok", exp))

	assert.ErrorIs(t, reg.ValidateAndTouch("tok", "user-2", nil), errors.ErrSessionInactive)
	assert.ErrorIs(t, reg.ValidateAndTouch("tok", "user-2", ptr(exp)), errors.ErrSessionInactive)

	// The rightful owner is unaffected.
	assert.NoError(t, reg.ValidateAndTouch("tok", "user-1", nil))

	reg.Revoke("tok")
	assert.ErrorIs(t, reg.ValidateAndTouch("tok", "user-2", ptr(exp)), errors.ErrSessionInactive)
}

func TestRegistry_LazyCreationFromHint(t *testing.T) {
	reg, _ := newRegistry(t, 10)

	assert.ErrorIs(t, reg.ValidateAndTouch("unknown", "user-1", nil), errors.ErrSessionInactive)

	assert.ErrorIs(t, reg.ValidateAndTouch("stale", "user-1", ptr(t0)), errors.ErrSessionExpired)
	assert.Equal(t, 0, reg.Len())

	require.NoError(t, reg.ValidateAndTouch("fresh", "user-1", ptr(t0.Add(time.Hour))))
	sess, ok := reg.Lookup("fresh")
	require.True(t, ok)
	assert.Equal(t, "user-1", sess.SubjectID)
	assert.Equal(t, t0, sess.LastSeen)
	assert.Equal(t, t0.Add(time.Hour), sess.ExpiresAt)
}

func TestRegistry_RegisterRejectsPastExpiry(t *testing.T) {
	reg, _ := newRegistry(t, 10)
	require.NoError(t, reg.Register("user-1", "tok", t0.Add(time.Hour)))

	err := reg.Register("user-1", "tok", t0)
	assert.ErrorIs(t, err, errors.ErrSessionExpired)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_RevokeThenPruneBoundary(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	exp := t0.Add(10 * time.Minute)
	require.NoError(t, reg.Register("user-1", "tok", exp))

	reg.Revoke("tok")
	assert.ErrorIs(t, reg.ValidateAndTouch("tok", "user-1", nil), errors.ErrSessionInactive)
	assert.Equal(t, 0, reg.Len())

	clk.Set(exp.Add(-time.Nanosecond))
	assert.True(t, reg.IsRevoked("tok"))

	clk.Set(exp)
	assert.False(t, reg.IsRevoked("tok"))
	// Gone from both maps: absent, hence inactive rather than revoked.
	assert.ErrorIs(t, reg.ValidateAndTouch("tok", "user-1", nil), errors.ErrSessionInactive)
}

func TestRegistry_RevokeUnknownTokenUsesExpiryHint(t *testing.T) {
	clk := clock.Fake(t0)
	hints := map[string]time.Time{
		"decodable": t0.Add(2 * time.Hour),
		"expired":   t0.Add(-time.Minute),
	}
	reg := session.New(session.Options{
		IdleTimeout: 30 * time.Minute,
		Capacity:    10,
		Clock:       clk,
		ExpiryHint: func(token string) (time.Time, bool) {
			exp, ok := hints[token]
			return exp, ok
		},
	})

	reg.Revoke("decodable")
	reg.Revoke("expired")
	reg.Revoke("garbage")
	reg.Revoke("")

	assert.True(t, reg.IsRevoked("decodable"))
	assert.False(t, reg.IsRevoked("expired"))
	assert.True(t, reg.IsRevoked("garbage"))

	// The undecodable token falls back to one idle window.
	clk.Advance(30 * time.Minute)
	assert.False(t, reg.IsRevoked("garbage"))
	assert.True(t, reg.IsRevoked("decodable"))
}

func TestRegistry_RegisterClearsRevocation(t *testing.T) {
	reg, _ := newRegistry(t, 10)
	exp := t0.Add(time.Hour)
	require.NoError(t, reg.Register("user-1", "tok", exp))
	reg.Revoke("tok")
	require.True(t, reg.IsRevoked("tok"))

	require.NoError(t, reg.Register("user-1", "tok", exp))
	assert.False(t, reg.IsRevoked("tok"))
	assert.NoError(t, reg.ValidateAndTouch("tok", "user-1", nil))
}

func TestRegistry_RevokeAll(t *testing.T) {
	reg, _ := newRegistry(t, 10)
	exp := t0.Add(time.Hour)
	require.NoError(t, reg.Register("user-1", "a", exp))
	require.NoError(t, reg.Register("user-1", "b", exp))
	require.NoError(t, reg.Register("user-2", "c", exp))
	reg.RememberPortalSubject("portal-x", "user-1", exp)

	assert.Equal(t, 2, reg.RevokeAll("user-1"))
	assert.Equal(t, 1, reg.Len())

	assert.ErrorIs(t, reg.ValidateAndTouch("a", "user-1", nil), errors.ErrSessionInactive)
	assert.ErrorIs(t, reg.ValidateAndTouch("b", "user-1", nil), errors.ErrSessionInactive)
	assert.NoError(t, reg.ValidateAndTouch("c", "user-2", nil))

	_, _, ok := reg.CachedPortalSubject("portal-x")
	assert.False(t, ok)

	assert.Equal(t, 0, reg.RevokeAll("nobody"))
}

func TestRegistry_PortalCache(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	exp := t0.Add(5 * time.Minute)

	reg.RememberPortalSubject("X", "S", exp)
	subject, gotExp, ok := reg.CachedPortalSubject("X")
	require.True(t, ok)
	assert.Equal(t, "S", subject)
	assert.Equal(t, exp, gotExp)

	reg.ForgetPortalSubject("X")
	_, _, ok = reg.CachedPortalSubject("X")
	assert.False(t, ok)

	reg.RememberPortalSubject("X", "S", exp)
	clk.Advance(6 * time.Minute)
	_, _, ok = reg.CachedPortalSubject("X")
	assert.False(t, ok, "entry with an expiry in the past is purged")

	reg.RememberPortalSubject("Y", "S", clk.Now().Add(time.Minute))
	reg.Revoke("Y")
	_, _, ok = reg.CachedPortalSubject("Y")
	assert.False(t, ok, "revoking a token drops its cached resolution")
}

func TestRegistry_PrunesOtherSessionsOnEveryCall(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	require.NoError(t, reg.Register("user-1", "short", t0.Add(time.Minute)))
	require.NoError(t, reg.Register("user-1", "long", t0.Add(time.Hour)))

	clk.Advance(2 * time.Minute)
	require.NoError(t, reg.ValidateAndTouch("long", "user-1", nil))

	assert.Equal(t, 1, reg.Len())
	// Its expiry already passed, so no revocation entry outlives it.
	assert.False(t, reg.IsRevoked("short"))
}

func TestRegistry_RevokeKeepsExistingHorizon(t *testing.T) {
	reg, clk := newRegistry(t, 10)

	reg.Revoke("garbage")
	clk.Advance(20 * time.Minute)
	reg.Revoke("garbage")
	require.True(t, reg.IsRevoked("garbage"))

	// Still bounded by the first revocation's idle window.
	clk.Advance(10 * time.Minute)
	assert.False(t, reg.IsRevoked("garbage"))
}

func TestRegistry_RevokePrunes(t *testing.T) {
	reg, clk := newRegistry(t, 10)
	require.NoError(t, reg.Register("user-1", "short", t0.Add(5*time.Minute)))
	reg.Revoke("old")

	clk.Advance(30 * time.Minute)
	reg.Revoke("new")
	assert.Equal(t, 0, reg.Len())

	require.NoError(t, reg.Register("user-2", "other", t0.Add(2*time.Hour)))
	clk.Advance(31 * time.Minute)
	assert.Equal(t, 0, reg.RevokeAll("nobody"))
	// The idle-expired session went in the RevokeAll prune, not a later call.
	_, ok := reg.Lookup("other")
	assert.False(t, ok)
	assert.True(t, reg.IsRevoked("other"))
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	reg := session.New(session.Options{
		IdleTimeout: time.Minute,
		Capacity:    50,
	})
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tok := fmt.Sprintf("w%d-%d", w, i)
				subject := fmt.Sprintf("user-%d", w)
				_ = reg.Register(subject, tok, exp)
				_ = reg.ValidateAndTouch(tok, subject, nil)
				if i%7 == 0 {
					reg.Revoke(tok)
				}
				if i%31 == 0 {
					reg.RevokeAll(subject)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, reg.Len(), 50)
}

package cache_test

import (
	"testing"
	"time"

	"github.com/pilab-dev/planauth/cache"
	"github.com/stretchr/testify/assert"
)

func TestPortalCache_LookupHit(t *testing.T) {
	c := cache.NewPortalCache(10)
	entry := cache.PortalEntry{SubjectID: "user-1", ExpiresAt: t0.Add(time.Hour)}
	c.Remember("portal-token", entry, t0)

	got, ok := c.Lookup("portal-token", t0.Add(30*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestPortalCache_StaleEntryIsPurged(t *testing.T) {
	c := cache.NewPortalCache(10)
	c.Remember("X", cache.PortalEntry{SubjectID: "S", ExpiresAt: t0.Add(time.Minute)}, t0)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Lookup("X", t0.Add(2*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPortalCache_RememberExpiredDropsPrevious(t *testing.T) {
	c := cache.NewPortalCache(10)
	c.Remember("X", cache.PortalEntry{SubjectID: "S", ExpiresAt: t0.Add(time.Hour)}, t0)
	c.Remember("X", cache.PortalEntry{SubjectID: "S", ExpiresAt: t0}, t0)

	_, ok := c.Lookup("X", t0)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPortalCache_ForgetSubject(t *testing.T) {
	c := cache.NewPortalCache(10)
	exp := t0.Add(time.Hour)
	c.Remember("a", cache.PortalEntry{SubjectID: "S1", ExpiresAt: exp}, t0)
	c.Remember("b", cache.PortalEntry{SubjectID: "S1", ExpiresAt: exp}, t0)
	c.Remember("c", cache.PortalEntry{SubjectID: "S2", ExpiresAt: exp}, t0)

	assert.Equal(t, 2, c.ForgetSubject("S1"))
	assert.Equal(t, 1, c.Len())

	_, ok := c.Lookup("c", t0)
	assert.True(t, ok)
}

func TestPortalCache_CapacityBound(t *testing.T) {
	c := cache.NewPortalCache(2)
	exp := t0.Add(time.Hour)
	c.Remember("a", cache.PortalEntry{SubjectID: "S", ExpiresAt: exp}, t0)
	c.Remember("b", cache.PortalEntry{SubjectID: "S", ExpiresAt: exp}, t0)
	c.Remember("c", cache.PortalEntry{SubjectID: "S", ExpiresAt: exp}, t0)

	assert.Equal(t, 2, c.Len())
}

package cache

import "time"

// RevocationList is a denylist of raw tokens, each kept until its horizon.
// Entries are only dropped by Prune or Forget; there is no timer.
//
// RevocationList is not safe for concurrent use. The session registry
// guards it with its own lock.
type RevocationList struct {
	entries map[string]time.Time
}

// NewRevocationList creates an empty list.
func NewRevocationList() *RevocationList {
	return &RevocationList{entries: make(map[string]time.Time)}
}

// Remember denies token until horizon. A horizon that is not after now
// is ignored.
func (r *RevocationList) Remember(token string, horizon, now time.Time) {
	if !horizon.After(now) {
		return
	}
	r.entries[token] = horizon
}

// Prune removes every entry whose horizon is at or before now and
// returns how many were removed.
func (r *RevocationList) Prune(now time.Time) int {
	removed := 0
	for token, horizon := range r.entries {
		if !horizon.After(now) {
			delete(r.entries, token)
			removed++
		}
	}
	return removed
}

// Active reports whether token is denied at now.
func (r *RevocationList) Active(token string, now time.Time) bool {
	horizon, ok := r.entries[token]
	return ok && horizon.After(now)
}

// Horizon returns the recorded horizon for token.
func (r *RevocationList) Horizon(token string) (time.Time, bool) {
	horizon, ok := r.entries[token]
	return horizon, ok
}

// Forget drops any entry for token.
func (r *RevocationList) Forget(token string) {
	delete(r.entries, token)
}

// Len returns the number of entries, pruned or not.
func (r *RevocationList) Len() int {
	return len(r.entries)
}

package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/planauth/cache"
	"github.com/pilab-dev/planauth/domain"
	"github.com/rs/zerolog/log"
)

// SessionStore is the part of the session registry the bridge drives.
type SessionStore interface {
	ValidateAndTouch(token, subjectID string, expiresAt *time.Time) error
	CachedPortalSubject(token string) (string, time.Time, bool)
	RememberPortalSubject(token, subjectID string, expiresAt time.Time)
	ForgetPortalSubject(token string)
}

// SessionResolver resolves a portal token with the portal.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*ExternalSession, error)
}

// SubjectProvisioner maps a portal identity to a local user.
type SubjectProvisioner interface {
	EnsureLocalSubject(ctx context.Context, ext ExternalUser) (*domain.User, error)
}

// Bridge accepts tokens minted by the login portal. A token the portal
// confirmed once is remembered until its expiry, so later requests only
// touch the local session.
type Bridge struct {
	enabled     bool
	sessions    SessionStore
	resolver    SessionResolver
	provisioner SubjectProvisioner
	users       domain.UserReader
}

// NewBridge wires a bridge. A disabled bridge rejects every token.
func NewBridge(
	enabled bool,
	sessions SessionStore,
	resolver SessionResolver,
	provisioner SubjectProvisioner,
	users domain.UserReader,
) *Bridge {
	return &Bridge{
		enabled:     enabled,
		sessions:    sessions,
		resolver:    resolver,
		provisioner: provisioner,
		users:       users,
	}
}

// Enabled reports whether the bridge accepts portal tokens.
func (b *Bridge) Enabled() bool {
	return b != nil && b.enabled
}

// Authenticate resolves a portal token to a local user and keeps its
// session alive. It never registers a session for a token the portal
// did not confirm, and never revives a revoked token.
func (b *Bridge) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if !b.Enabled() {
		return nil, ErrBridgeDisabled
	}

	if user, ok := b.fromCache(ctx, token); ok {
		return user, nil
	}

	ext, err := b.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := b.provisioner.EnsureLocalSubject(ctx, ext.User)
	if err != nil {
		return nil, err
	}

	expiresAt := ext.ExpiresAt
	if err := b.sessions.ValidateAndTouch(token, user.ID, &expiresAt); err != nil {
		return nil, fmt.Errorf("portal session rejected by registry: %w", err)
	}
	b.sessions.RememberPortalSubject(token, user.ID, expiresAt)

	log.Debug().
		Str("token", cache.Fingerprint(token)).
		Str("user_id", user.ID).
		Time("expires_at", expiresAt).
		Msg("Portal session accepted")
	return user, nil
}

// fromCache serves a previously confirmed token. Any failure drops the
// cache entry so the caller falls back to the portal.
func (b *Bridge) fromCache(ctx context.Context, token string) (*domain.User, bool) {
	subjectID, expiresAt, ok := b.sessions.CachedPortalSubject(token)
	if !ok {
		return nil, false
	}

	if err := b.sessions.ValidateAndTouch(token, subjectID, &expiresAt); err != nil {
		b.sessions.ForgetPortalSubject(token)
		return nil, false
	}

	user, err := b.users.GetUserByID(ctx, subjectID)
	if err != nil {
		b.sessions.ForgetPortalSubject(token)
		if !errors.Is(err, domain.ErrUserNotFound) {
			log.Warn().Err(err).Str("user_id", subjectID).Msg("Failed to load cached portal user")
		}
		return nil, false
	}
	return user, true
}

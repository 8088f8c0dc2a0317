package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/auth"
	"github.com/rs/zerolog/log"
)

const (
	unusableSecretBytes = 24
	// defaultUsername names identities that carry no usable name at all.
	defaultUsername = "user"
)

// PasswordHasher hashes the throwaway credential of provisioned users.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Provisioner mirrors portal identities into the local user store.
type Provisioner struct {
	users         domain.UserRepository
	hasher        PasswordHasher
	autoProvision bool
	now           func() time.Time
}

// NewProvisioner creates a Provisioner. With autoProvision false, only
// identities that already have a local user are accepted.
func NewProvisioner(users domain.UserRepository, hasher PasswordHasher, autoProvision bool) *Provisioner {
	return &Provisioner{
		users:         users,
		hasher:        hasher,
		autoProvision: autoProvision,
		now:           time.Now,
	}
}

// NormalizeUsername picks the local username for an external identity:
// the part before "@" of its username, display name or email, in that order.
func NormalizeUsername(user ExternalUser) string {
	candidate := user.Username
	if candidate == "" {
		candidate = user.DisplayName
	}
	if candidate == "" {
		candidate = user.Email
	}
	if candidate == "" {
		return defaultUsername
	}
	return strings.SplitN(candidate, "@", 2)[0]
}

// EnsureLocalSubject returns the local user for ext, creating it on first
// sight and refreshing username and role when they drifted. Refresh
// failures are logged, not returned.
func (p *Provisioner) EnsureLocalSubject(ctx context.Context, ext ExternalUser) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(ext.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: external user has no email", ErrPortalRejected)
	}

	username := NormalizeUsername(ext)
	role := ext.Role
	if role == "" {
		role = domain.RoleUser
	}

	user, err := p.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return p.create(ctx, email, username, role)
	case err != nil:
		return nil, fmt.Errorf("failed to look up user %s: %w", email, err)
	}

	if user.Username == username && user.Role == role {
		return user, nil
	}

	user.Username = username
	user.Role = role
	user.UpdatedAt = p.now().UTC()
	if err := p.users.UpdateUser(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to refresh federated user attributes")
	}
	return user, nil
}

func (p *Provisioner) create(ctx context.Context, email, username, role string) (*domain.User, error) {
	if !p.autoProvision {
		return nil, ErrProvisioningDisabled
	}

	secret, err := auth.RandomSecret(unusableSecretBytes)
	if err != nil {
		return nil, err
	}
	hash, err := p.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash provisioned credential: %w", err)
	}

	now := p.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			// A concurrent request provisioned the same identity first.
			return p.users.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to provision user %s: %w", email, err)
	}

	log.Info().Str("user_id", user.ID).Str("email", email).Str("role", role).Msg("Provisioned federated user")
	return user, nil
}

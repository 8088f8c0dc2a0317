package portal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/planauth"
	"github.com/pilab-dev/planauth/api"
	"github.com/pilab-dev/planauth/domain"
)

const (
	claimSessionID   = "sid"
	claimEmail       = "email"
	claimUsername    = "username"
	claimRole        = "role"
	claimDisplayName = "display_name"
)

// SessionTokens mints and validates the tokens handed to the frontend and
// trusted by the backend bridge.
type SessionTokens struct {
	codec *planauth.TokenCodec
	ttl   time.Duration
}

func NewSessionTokens(codec *planauth.TokenCodec, ttl time.Duration) *SessionTokens {
	return &SessionTokens{codec: codec, ttl: ttl}
}

// TTL is the lifetime of issued tokens.
func (s *SessionTokens) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for identity under a fresh session id.
func (s *SessionTokens) Issue(identity *Identity) (token string, sessionID string, err error) {
	sessionID = uuid.NewString()

	claims := map[string]any{claimSessionID: sessionID}
	setIfPresent(claims, claimEmail, identity.Email)
	setIfPresent(claims, claimUsername, identity.Username)
	role := identity.Role
	if role == "" {
		role = domain.RoleUser
	}
	claims[claimRole] = role
	displayName := identity.DisplayName
	if displayName == "" {
		displayName = identity.Username
	}
	setIfPresent(claims, claimDisplayName, displayName)

	token, err = s.codec.Issue(claims, s.ttl)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue portal session token: %w", err)
	}
	return token, sessionID, nil
}

// Validate decodes token and builds the answer of the validate endpoint.
// Failures carry errors.ErrInvalidToken or errors.ErrExpiredToken.
func (s *SessionTokens) Validate(token string) (*api.SessionValidateResponse, error) {
	decoded, err := s.codec.Decode(token, 0)
	if err != nil {
		return nil, err
	}

	username := stringClaim(decoded.Claims, claimUsername)
	displayName := stringClaim(decoded.Claims, claimDisplayName)
	if displayName == "" {
		displayName = username
	}
	role := stringClaim(decoded.Claims, claimRole)
	if role == "" {
		role = domain.RoleUser
	}

	return &api.SessionValidateResponse{
		AccessToken: token,
		User: api.SessionUser{
			Email:       stringClaim(decoded.Claims, claimEmail),
			Username:    username,
			DisplayName: displayName,
			Role:        role,
			SessionID:   stringClaim(decoded.Claims, claimSessionID),
		},
		IssuedAt:  decoded.IssuedAt,
		ExpiresAt: decoded.ExpiresAt,
	}, nil
}

func setIfPresent(claims map[string]any, key, value string) {
	if value != "" {
		claims[key] = value
	}
}

func stringClaim(claims map[string]any, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

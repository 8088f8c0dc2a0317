package planauth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pilab-dev/planauth/cache"
	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/errors"
	"github.com/pilab-dev/planauth/internal/metrics"
	"github.com/pilab-dev/planauth/session"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tracerName = "github.com/pilab-dev/planauth"

	DefaultAccessTokenTTL = 24 * time.Hour
)

// PortalBridge authenticates tokens the local codec cannot verify.
type PortalBridge interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Authenticator decides whether a bearer token identifies a live user.
// Local tokens are checked against the session registry; tokens that do
// not verify locally are handed to the portal bridge.
type Authenticator struct {
	codec     *TokenCodec
	sessions  *session.Registry
	bridge    PortalBridge
	users     domain.UserReader
	accessTTL time.Duration
}

// NewAuthenticator wires an authenticator. bridge may be nil, in which case
// only local tokens are accepted.
func NewAuthenticator(
	codec *TokenCodec,
	sessions *session.Registry,
	bridge PortalBridge,
	users domain.UserReader,
	accessTTL time.Duration,
) *Authenticator {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	return &Authenticator{
		codec:     codec,
		sessions:  sessions,
		bridge:    bridge,
		users:     users,
		accessTTL: accessTTL,
	}
}

// Authenticate returns the user behind raw. Every failure is reported as
// errors.ErrUnauthenticated; tokens that fail for reasons other than a
// missing session are revoked on the way out.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Authenticator.Authenticate")
	defer span.End()

	user, path, err := a.authenticate(ctx, raw)

	outcome := metrics.OutcomeAuthenticated
	if err != nil {
		outcome = metrics.OutcomeRejected
		if errors.KindOf(err) == errors.KindExpiredToken || errors.KindOf(err) == errors.KindSessionExpired {
			outcome = metrics.OutcomeExpired
		}
	}
	metrics.AuthOutcomesTotal.WithLabelValues(path, outcome).Inc()
	span.SetAttributes(
		attribute.String("auth.path", path),
		attribute.String("auth.outcome", outcome),
	)

	logEvent := log.Debug().Str("token", cache.Fingerprint(raw)).Str("path", path).Str("outcome", outcome)
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		logEvent.Err(err).Msg("Authentication rejected")
		return nil, errors.Wrap(errors.ErrUnauthenticated, "%v", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	logEvent.Str("user_id", user.ID).Msg("Authenticated")
	return user, nil
}

func (a *Authenticator) authenticate(ctx context.Context, raw string) (*domain.User, string, error) {
	if raw == "" {
		return nil, metrics.PathLocal, errors.Wrap(errors.ErrInvalidToken, "no token provided")
	}

	decoded, err := a.codec.Decode(raw, 0)
	switch errors.KindOf(err) {
	case errors.KindNone:
		user, err := a.authenticateLocal(ctx, raw, decoded)
		return user, metrics.PathLocal, err

	case errors.KindExpiredToken:
		a.sessions.Revoke(raw)
		return nil, metrics.PathLocal, err

	default:
		if a.bridge == nil {
			a.sessions.Revoke(raw)
			return nil, metrics.PathBridge, err
		}
		user, bridgeErr := a.bridge.Authenticate(ctx, raw)
		if bridgeErr != nil {
			a.sessions.Revoke(raw)
			return nil, metrics.PathBridge, bridgeErr
		}
		return user, metrics.PathBridge, nil
	}
}

func (a *Authenticator) authenticateLocal(ctx context.Context, raw string, decoded *DecodedToken) (*domain.User, error) {
	if decoded.Subject == "" {
		a.sessions.Revoke(raw)
		return nil, errors.Wrap(errors.ErrInvalidToken, "token has no subject")
	}

	expiresAt := decoded.Expiry()
	if err := a.sessions.ValidateAndTouch(raw, decoded.Subject, &expiresAt); err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByID(ctx, decoded.Subject)
	if err != nil {
		if !stderrors.Is(err, domain.ErrUserNotFound) {
			log.Warn().Err(err).Str("user_id", decoded.Subject).Msg("Failed to load session user")
		}
		a.sessions.Revoke(raw)
		return nil, errors.Wrap(errors.ErrSessionInactive, "session user is gone: %v", err)
	}
	return user, nil
}

// IssueSession mints an access token for user and registers its session.
func (a *Authenticator) IssueSession(ctx context.Context, user *domain.User) (string, time.Time, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "Authenticator.IssueSession")
	defer span.End()

	token, err := a.codec.Issue(map[string]any{claimSubject: user.ID}, a.accessTTL)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", time.Time{}, err
	}

	expiresAt, ok := a.codec.ExpiryOf(token)
	if !ok {
		return "", time.Time{}, stderrors.New("freshly issued token does not verify")
	}
	if err := a.sessions.Register(user.ID, token, expiresAt); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", time.Time{}, err
	}

	log.Debug().Str("token", cache.Fingerprint(token)).Str("user_id", user.ID).Time("expires_at", expiresAt).Msg("Session issued")
	return token, expiresAt, nil
}

// Logout revokes token. It is safe to call with tokens that are no longer
// valid.
func (a *Authenticator) Logout(token string) {
	a.sessions.Revoke(token)
}

// LogoutAll ends every session of userID and returns how many ended.
func (a *Authenticator) LogoutAll(userID string) int {
	n := a.sessions.RevokeAll(userID)
	if n > 0 {
		log.Info().Str("user_id", userID).Int("sessions", n).Msg("Revoked all sessions")
	}
	return n
}

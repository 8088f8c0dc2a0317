package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth/cache"
	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/errors"
	"github.com/rs/zerolog/log"
)

// Keys under which Authn stores the caller in the echo context.
const (
	AuthUserKey  = "auth_user"
	AuthTokenKey = "auth_token"
)

// RequestAuthenticator resolves a bearer token to a user.
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Authn rejects requests without a valid bearer token and makes the
// authenticated user available to handlers, both in the echo context and
// in the request context.
func Authn(auth RequestAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return Unauthenticated(c)
			}

			ctx := c.Request().Context()
			user, err := auth.Authenticate(ctx, token)
			if err != nil {
				log.Debug().Err(err).Str("token", cache.Fingerprint(token)).Str("path", c.Path()).Msg("Rejected bearer token")
				return Unauthenticated(c)
			}

			c.SetRequest(c.Request().WithContext(domain.WithUser(ctx, user, token)))
			c.Set(AuthUserKey, user)
			c.Set(AuthTokenKey, token)

			return next(c)
		}
	}
}

// Unauthenticated writes the uniform 401 answer. It never says which
// check failed.
func Unauthenticated(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	apiErr := errors.NewUnauthenticated()
	return c.JSON(apiErr.Status, apiErr)
}

// CurrentUser returns the user stored by Authn.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(AuthUserKey).(*domain.User)
	if ok && user != nil {
		return user, true
	}
	return domain.UserFromContext(c.Request().Context())
}

// CurrentToken returns the bearer token stored by Authn.
func CurrentToken(c echo.Context) (string, bool) {
	token, ok := c.Get(AuthTokenKey).(string)
	if ok && token != "" {
		return token, true
	}
	return domain.TokenFromContext(c.Request().Context())
}

package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth/errors"
	"github.com/pilab-dev/planauth/internal/auth/rbac"
	"github.com/rs/zerolog/log"
)

const detailForbidden = "Not enough permissions"

// RequirePermission allows the request only when the caller's role grants
// permission. It must run after Authn.
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				log.Warn().Str("path", c.Path()).Msg("Authorization check without an authenticated user")
				return Unauthenticated(c)
			}

			if !rbac.HasPermission(user.Role, permission) {
				log.Warn().
					Str("user_id", user.ID).
					Str("role", user.Role).
					Str("required_permission", permission).
					Msg("Permission denied for user.")
				return forbidden(c)
			}
			return next(c)
		}
	}
}

func forbidden(c echo.Context) error {
	apiErr := errors.NewForbidden(detailForbidden)
	return c.JSON(apiErr.Status, apiErr)
}

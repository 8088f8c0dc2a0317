//nolint:varnamelen
package echo

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth/api"
	"github.com/pilab-dev/planauth/domain"
	apierrors "github.com/pilab-dev/planauth/errors"
	"github.com/pilab-dev/planauth/internal/audit"
	"github.com/pilab-dev/planauth/internal/auth/rbac"
	"github.com/pilab-dev/planauth/internal/metrics"
	"github.com/pilab-dev/planauth/middleware"
	"github.com/rs/zerolog/log"
)

const (
	detailBadCredentials = "Incorrect email or password"
	detailDeleteSelf     = "Cannot delete your own account"
	detailUserNotFound   = "User not found"

	metricsService = "backend"
)

// SessionService is the part of planauth.Authenticator the routes use.
type SessionService interface {
	middleware.RequestAuthenticator
	IssueSession(ctx context.Context, user *domain.User) (string, time.Time, error)
	Logout(token string)
	LogoutAll(userID string) int
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(hashedPassword, password string) error
}

// AuthAPI serves the backend's authentication and account routes.
type AuthAPI struct {
	sessions SessionService
	users    domain.UserRepository
	verifier PasswordVerifier
}

// NewAuthAPI creates the API.
func NewAuthAPI(sessions SessionService, users domain.UserRepository, verifier PasswordVerifier) *AuthAPI {
	return &AuthAPI{
		sessions: sessions,
		users:    users,
		verifier: verifier,
	}
}

// RegisterRoutes registers the routes under /api.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	authn := middleware.Authn(a.sessions)

	g := e.Group("/api")
	g.POST("/auth/login", a.LoginHandler)
	g.GET("/auth/me", a.MeHandler, authn)
	g.POST("/auth/logout", a.LogoutHandler, authn)
	g.DELETE("/users/:id", a.DeleteUserHandler, authn, middleware.RequirePermission(rbac.PermUsersDeleteAll))

	e.GET("/healthz", a.HealthHandler)
}

// LoginHandler verifies email and password and opens a session.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	var req api.LoginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apierrors.NewBadRequest("Invalid request body"))
	}

	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return a.rejectLogin(c, email)
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			log.Error().Err(err).Str("email", email).Msg("Failed to look up user for login")
			return writeError(c, apierrors.NewServerError())
		}
		return a.rejectLogin(c, email)
	}
	if err := a.verifier.Verify(user.PasswordHash, req.Password); err != nil {
		return a.rejectLogin(c, email)
	}

	token, expiresAt, err := a.sessions.IssueSession(ctx, user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue session")
		return writeError(c, apierrors.NewServerError())
	}

	metrics.LoginSuccessTotal.WithLabelValues(metricsService).Inc()
	audit.Log(metricsService, audit.ActionLogin, user.ID, "", true, nil)
	log.Info().Str("user_id", user.ID).Msg("User logged in")

	return c.JSON(http.StatusOK, api.TokenResponse{
		AccessToken: token,
		TokenType:   api.TokenTypeBearer,
		ExpiresAt:   expiresAt.Unix(),
		User:        user.Profile(),
	})
}

func (a *AuthAPI) rejectLogin(c echo.Context, email string) error {
	metrics.LoginFailureTotal.WithLabelValues(metricsService).Inc()
	audit.Log(metricsService, audit.ActionLogin, email, "", false, nil)
	log.Info().Str("email", email).Msg("Login rejected")

	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return writeError(c, apierrors.NewUnauthorized(detailBadCredentials))
}

// MeHandler returns the caller's profile.
func (a *AuthAPI) MeHandler(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return middleware.Unauthenticated(c)
	}
	return c.JSON(http.StatusOK, user.Profile())
}

// LogoutHandler revokes the token the request was made with.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	token, ok := middleware.CurrentToken(c)
	if !ok {
		return middleware.Unauthenticated(c)
	}
	a.sessions.Logout(token)
	if user, ok := middleware.CurrentUser(c); ok {
		audit.Log(metricsService, audit.ActionLogout, user.ID, "", true, nil)
	}
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "Logged out"})
}

// DeleteUserHandler removes an account after ending all of its sessions.
func (a *AuthAPI) DeleteUserHandler(c echo.Context) error {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		return middleware.Unauthenticated(c)
	}

	userID := c.Param("id")
	if userID == current.ID {
		return writeError(c, apierrors.NewBadRequest(detailDeleteSelf))
	}

	ctx := c.Request().Context()
	if _, err := a.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return writeError(c, apierrors.NewNotFound(detailUserNotFound))
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for deletion")
		return writeError(c, apierrors.NewServerError())
	}

	revoked := a.sessions.LogoutAll(userID)
	if err := a.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return writeError(c, apierrors.NewNotFound(detailUserNotFound))
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete user")
		return writeError(c, apierrors.NewServerError())
	}

	audit.Log(metricsService, audit.ActionDeleteUser, current.ID, userID, true, nil)
	log.Info().Str("user_id", userID).Str("deleted_by", current.ID).Int("revoked_sessions", revoked).Msg("User deleted")
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "User deleted successfully"})
}

// HealthHandler reports liveness.
func (a *AuthAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(c echo.Context, apiErr *apierrors.APIError) error {
	return c.JSON(apiErr.Status, apiErr)
}

//nolint:varnamelen
package portal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth/api"
	"github.com/pilab-dev/planauth/cache"
	"github.com/pilab-dev/planauth/clock"
	apierrors "github.com/pilab-dev/planauth/errors"
	"github.com/pilab-dev/planauth/internal/audit"
	"github.com/pilab-dev/planauth/internal/metrics"
	"github.com/pilab-dev/planauth/middleware"
	"github.com/rs/zerolog/log"
)

const (
	SessionCookieName = "planauth_portal_session"
	ValidatePath      = "/api/auth/session/validate"

	detailInvalidCredentials = "Invalid User Credentials"
	detailTokenRequired      = "Session token is required."
	detailTokenExpired       = "Session token has expired."
	detailTokenInvalid       = "Session token is invalid."

	metricsService = "portal"
)

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<form method="post" action="/login">
<label>Username <input name="username" autocomplete="username"></label>
<label>Password <input name="password" type="password" autocomplete="current-password"></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`

// Authenticator turns portal credentials into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*Identity, error)
}

// HandlerOptions configure the portal routes.
type HandlerOptions struct {
	// RedirectURL receives the sessionToken query parameter after login.
	RedirectURL  string
	CookieSecure bool
	// LoginLimiter throttles POST /login. Nil disables throttling.
	LoginLimiter *middleware.IPRateLimiter
	Clock        clock.Clock
}

// Handler serves the portal's login, logout and validate routes.
type Handler struct {
	identities Authenticator
	tokens     *SessionTokens
	sessions   cache.LoginSessionStore
	opts       HandlerOptions
}

func NewHandler(identities Authenticator, tokens *SessionTokens, sessions cache.LoginSessionStore, opts HandlerOptions) *Handler {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Handler{
		identities: identities,
		tokens:     tokens,
		sessions:   sessions,
		opts:       opts,
	}
}

// RegisterRoutes registers the portal routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	var loginMiddleware []echo.MiddlewareFunc
	if h.opts.LoginLimiter != nil {
		loginMiddleware = append(loginMiddleware, h.opts.LoginLimiter.Middleware())
	}

	e.GET("/login", h.LoginPageHandler)
	e.POST("/login", h.LoginHandler, loginMiddleware...)
	e.GET("/logout", h.LogoutHandler)
	e.POST("/logout", h.LogoutHandler)
	e.GET(ValidatePath, h.ValidateHandler)
	e.GET(ValidatePath+"/", h.ValidateHandler)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// LoginPageHandler renders the sign-in form.
func (h *Handler) LoginPageHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, loginPage)
}

// LoginHandler authenticates a form or JSON login and redirects to the
// frontend with a session token.
func (h *Handler) LoginHandler(c echo.Context) error {
	var req api.PortalLoginRequest
	if err := c.Bind(&req); err != nil {
		return h.rejectLogin(c, "")
	}

	ctx := c.Request().Context()
	identity, err := h.identities.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Error().Err(err).Str("login", req.Username).Msg("Portal login failed")
		}
		return h.rejectLogin(c, req.Username)
	}

	token, sessionID, err := h.tokens.Issue(identity)
	if err != nil {
		log.Error().Err(err).Str("login", identity.Login).Msg("Failed to issue portal token")
		return writeError(c, apierrors.NewServerError())
	}

	h.openLoginSession(c, sessionID, token, identity)
	metrics.LoginSuccessTotal.WithLabelValues(metricsService).Inc()
	audit.Log(metricsService, audit.ActionLogin, identity.Login, identity.Source, true, nil)

	redirect, err := redirectWithToken(h.opts.RedirectURL, token)
	if err != nil {
		log.Error().Err(err).Str("redirect_url", h.opts.RedirectURL).Msg("Invalid frontend redirect URL")
		return writeError(c, apierrors.NewServerError())
	}
	return c.Redirect(http.StatusFound, redirect)
}

func (h *Handler) rejectLogin(c echo.Context, login string) error {
	metrics.LoginFailureTotal.WithLabelValues(metricsService).Inc()
	audit.Log(metricsService, audit.ActionLogin, login, "", false, nil)
	log.Info().Str("login", login).Msg("Portal login rejected")
	return writeError(c, apierrors.NewUnauthorized(detailInvalidCredentials))
}

// openLoginSession stores the server-side session behind the cookie. A
// store failure does not fail the login since the token is already issued.
func (h *Handler) openLoginSession(c echo.Context, sessionID, token string, identity *Identity) {
	if h.sessions == nil {
		return
	}

	now := h.opts.Clock.Now()
	session := &cache.LoginSession{
		ID:        sessionID,
		Email:     identity.Email,
		Username:  identity.Username,
		Role:      identity.Role,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(h.tokens.TTL()),
	}
	if err := h.sessions.Save(c.Request().Context(), session); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to store portal login session")
		return
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LogoutHandler ends the login session and returns to the sign-in form.
func (h *Handler) LogoutHandler(c echo.Context) error {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" && h.sessions != nil {
		if err := h.sessions.Delete(c.Request().Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Str("session_id", cookie.Value).Msg("Failed to delete portal login session")
		}
		audit.Log(metricsService, audit.ActionLogout, "", cookie.Value, true, nil)
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, "/login")
}

// ValidateHandler answers whether a session token is live and who it
// belongs to.
func (h *Handler) ValidateHandler(c echo.Context) error {
	token := requestToken(c)
	if token == "" {
		return writeError(c, apierrors.NewBadRequest(detailTokenRequired))
	}

	resp, err := h.tokens.Validate(token)
	if err != nil {
		log.Debug().Err(err).Str("token", cache.Fingerprint(token)).Msg("Session token rejected")
		if apierrors.KindOf(err) == apierrors.KindExpiredToken {
			return writeError(c, apierrors.NewUnauthorized(detailTokenExpired))
		}
		return writeError(c, apierrors.NewUnauthorized(detailTokenInvalid))
	}

	return c.JSON(http.StatusOK, resp)
}

func requestToken(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	if token := c.QueryParam("sessionToken"); token != "" {
		return token
	}
	token, _ := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	return token
}

// redirectWithToken adds sessionToken to target, keeping its other query
// parameters.
func redirectWithToken(target, token string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	query := u.Query()
	query.Set("sessionToken", token)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func writeError(c echo.Context, apiErr *apierrors.APIError) error {
	return c.JSON(apiErr.Status, apiErr)
}

package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/auth/rbac"
	"github.com/pilab-dev/planauth/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := middleware.BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func newProtectedServer(auth middleware.RequestAuthenticator, extra ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	chain := append([]echo.MiddlewareFunc{middleware.Authn(auth)}, extra...)
	e.GET("/protected", func(c echo.Context) error {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		ctxUser, _ := domain.UserFromContext(c.Request().Context())
		token, _ := domain.TokenFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]string{
			"id":       user.ID,
			"ctx_id":   ctxUser.ID,
			"ctx_auth": token,
		})
	}, chain...)
	return e
}

func serve(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func assertUniform401(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	assert.JSONEq(t, `{"detail":"Invalid authentication credentials"}`, rec.Body.String())
}

func TestAuthn_Success(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("Authenticate", mock.Anything, "good-token").Return(&domain.User{ID: "u-1", Role: domain.RoleViewer}, nil)

	rec := serve(newProtectedServer(auth), "Bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u-1", body["id"])
	assert.Equal(t, "u-1", body["ctx_id"])
	assert.Equal(t, "good-token", body["ctx_auth"])
	auth.AssertExpectations(t)
}

func TestAuthn_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"rejected token", "Bearer bad-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(MockAuthenticator)
			auth.On("Authenticate", mock.Anything, "bad-token").Return(nil, errors.New("unauthenticated"))

			assertUniform401(t, serve(newProtectedServer(auth), tt.header))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("Authenticate", mock.Anything, "admin").Return(&domain.User{ID: "a", Role: domain.RoleAdmin}, nil)
	auth.On("Authenticate", mock.Anything, "viewer").Return(&domain.User{ID: "v", Role: domain.RoleViewer}, nil)

	e := newProtectedServer(auth, middleware.RequirePermission(rbac.PermUsersDeleteAll))

	assert.Equal(t, http.StatusOK, serve(e, "Bearer admin").Code)

	rec := serve(e, "Bearer viewer")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"Not enough permissions"}`, rec.Body.String())
}

func TestRequirePermission_WithoutAuthn(t *testing.T) {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.RequirePermission(rbac.PermUsersDeleteAll))

	assertUniform401(t, serve(e, ""))
}

package api

import "github.com/pilab-dev/planauth/domain"

const TokenTypeBearer = "bearer"

// LoginRequest is the body of the backend's POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// TokenResponse is returned by a successful backend login.
type TokenResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresAt   int64              `json:"expires_at"`
	User        domain.UserProfile `json:"user"`
}

// MessageResponse acknowledges an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// PortalLoginRequest is the form posted to the portal's /login.
type PortalLoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// SessionUser is the identity block of a session validation answer.
type SessionUser struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	SessionID   string `json:"session_id"`
}

// SessionValidateResponse is the portal's answer to a live session token.
// Timestamps are Unix seconds.
type SessionValidateResponse struct {
	AccessToken string      `json:"access_token"`
	User        SessionUser `json:"user"`
	IssuedAt    int64       `json:"issued_at"`
	ExpiresAt   int64       `json:"expires_at"`
}

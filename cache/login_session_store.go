package cache

import (
	"context"
	"errors"
	"time"
)

var ErrLoginSessionNotFound = errors.New("login session not found")

// LoginSession is the portal's server-side record of a browser login, the
// counterpart of the session cookie.
type LoginSession struct {
	ID        string    `redis:"id" json:"id"`
	Email     string    `redis:"email" json:"email"`
	Username  string    `redis:"username" json:"username"`
	Role      string    `redis:"role" json:"role"`
	Token     string    `redis:"token" json:"token"`
	CreatedAt time.Time `redis:"createdAt" json:"created_at"`
	ExpiresAt time.Time `redis:"expiresAt" json:"expires_at"`
}

// LoginSessionStore persists portal login sessions.
type LoginSessionStore interface {
	Save(ctx context.Context, session *LoginSession) error
	Get(ctx context.Context, id string) (*LoginSession, error)
	Delete(ctx context.Context, id string) error
}

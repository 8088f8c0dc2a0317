package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an authentication failure.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidToken
	KindExpiredToken
	KindSessionInactive
	KindSessionExpired
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidToken:
		return "invalid_token"
	case KindExpiredToken:
		return "expired_token"
	case KindSessionInactive:
		return "session_inactive"
	case KindSessionExpired:
		return "session_expired"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AuthError is a failure of a given Kind. Two AuthErrors match under
// errors.Is when their kinds are equal, so wrapped details never hide the
// kind from callers.
type AuthError struct {
	Kind    Kind
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is reports whether target is an AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	// ErrInvalidToken: malformed token, unsupported header or bad signature.
	ErrInvalidToken = &AuthError{Kind: KindInvalidToken, Message: "invalid token"}
	// ErrExpiredToken: signature is fine but the token is past its expiry.
	ErrExpiredToken = &AuthError{Kind: KindExpiredToken, Message: "token has expired"}
	// ErrSessionInactive: the registry holds no usable session for the token.
	ErrSessionInactive = &AuthError{Kind: KindSessionInactive, Message: "session is not active"}
	// ErrSessionExpired: the session existed but aged out.
	ErrSessionExpired = &AuthError{Kind: KindSessionExpired, Message: "session has expired"}
	// ErrUnauthenticated is the only failure surfaced to the request layer.
	ErrUnauthenticated = &AuthError{Kind: KindUnauthenticated, Message: "unauthenticated"}
)

// KindOf returns the Kind carried by err, or KindNone when err is nil or
// not an authentication failure.
func KindOf(err error) Kind {
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindNone
}

// Wrap annotates a sentinel with detail while keeping it matchable.
func Wrap(sentinel *AuthError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

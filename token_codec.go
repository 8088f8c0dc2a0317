package planauth

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pilab-dev/planauth/clock"
	"github.com/pilab-dev/planauth/errors"
)

const (
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimSubject   = "sub"

	tokenType = "JWT"
)

// ErrMissingSecret is returned when a codec is built without a signing secret.
var ErrMissingSecret = stderrors.New("token signing secret is not configured")

// DecodedToken is the verified content of a token.
type DecodedToken struct {
	// Claims holds the payload as decoded. Numbers are json.Number.
	Claims    map[string]any
	Subject   string
	IssuedAt  int64
	ExpiresAt int64
}

// Expiry returns the exp claim as a time.
func (d *DecodedToken) Expiry() time.Time {
	return time.Unix(d.ExpiresAt, 0)
}

// TokenCodec issues and verifies compact HS256 tokens. The same format is
// minted by the login portal, so a codec configured with the portal's
// secret can read portal tokens as well.
type TokenCodec struct {
	secret []byte
	clock  clock.Clock
	parser *jwt.Parser
}

// NewTokenCodec creates a codec signing with secret.
func NewTokenCodec(secret []byte, clk clock.Clock) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &TokenCodec{
		secret: secret,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithJSONNumber(),
			// Expiry is checked against the codec's clock in Decode.
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issue signs claims with iat (unless already present) and exp = now+ttl,
// both in Unix seconds.
func (c *TokenCodec) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	if ttl < 0 {
		return "", fmt.Errorf("token ttl must not be negative, got %s", ttl)
	}

	now := c.clock.Now().Unix()
	payload := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	if _, ok := payload[claimIssuedAt]; !ok {
		payload[claimIssuedAt] = now
	}
	payload[claimExpiresAt] = now + int64(ttl/time.Second)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token and its expiry. Failures wrap
// errors.ErrInvalidToken or errors.ErrExpiredToken. The token is expired
// once now is past exp plus leeway, compared in whole seconds.
func (c *TokenCodec) Decode(raw string, leeway time.Duration) (*DecodedToken, error) {
	decoded, err := c.verify(raw)
	if err != nil {
		return nil, err
	}

	if c.clock.Now().Unix() > decoded.ExpiresAt+int64(leeway/time.Second) {
		return nil, errors.Wrap(errors.ErrExpiredToken, "expired at %d", decoded.ExpiresAt)
	}
	return decoded, nil
}

// ExpiryOf returns the exp claim of a token with a valid signature,
// whether or not it has already expired.
func (c *TokenCodec) ExpiryOf(raw string) (time.Time, bool) {
	decoded, err := c.verify(raw)
	if err != nil {
		return time.Time{}, false
	}
	return decoded.Expiry(), true
}

// verify checks structure, header and signature and extracts the
// registered claims. It does not look at the clock except to default iat.
func (c *TokenCodec) verify(raw string) (*DecodedToken, error) {
	if raw == "" {
		return nil, errors.Wrap(errors.ErrInvalidToken, "no token provided")
	}

	claims := jwt.MapClaims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if typ, _ := token.Header["typ"].(string); typ != tokenType {
			return nil, fmt.Errorf("unsupported token type %q", typ)
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidToken, "%v", err)
	}

	exp, ok := numericClaim(claims[claimExpiresAt])
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidToken, "token payload missing expiration claim")
	}

	iat, ok := numericClaim(claims[claimIssuedAt])
	if !ok {
		iat = c.clock.Now().Unix()
	}

	subject, _ := claims[claimSubject].(string)

	return &DecodedToken{
		Claims:    claims,
		Subject:   subject,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// numericClaim accepts integral and fractional JSON numbers, truncating
// the latter.
func numericClaim(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

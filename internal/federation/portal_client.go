package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/metrics"
)

const (
	DefaultPortalTimeout = 5 * time.Second

	maxPortalResponseBytes = 1 << 20
)

// ExternalUser is the identity the portal vouches for.
type ExternalUser struct {
	Email       string
	Username    string
	DisplayName string
	Role        string
}

// ExternalSession is a portal token resolved by the portal itself.
type ExternalSession struct {
	Token     string
	User      ExternalUser
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PortalClient calls the portal's session validation endpoint.
type PortalClient struct {
	validateURL string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewPortalClient creates a client for validateURL. A nil httpClient gets
// a default client that never follows redirects.
func NewPortalClient(validateURL string, timeout time.Duration, httpClient *http.Client) *PortalClient {
	if timeout <= 0 {
		timeout = DefaultPortalTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &PortalClient{
		validateURL: validateURL,
		timeout:     timeout,
		httpClient:  httpClient,
	}
}

// ValidateURL returns the endpoint this client calls.
func (c *PortalClient) ValidateURL() string {
	return c.validateURL
}

type validateUserPayload struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type validateResponse struct {
	User      *validateUserPayload `json:"user"`
	IssuedAt  epochSeconds         `json:"issued_at"`
	ExpiresAt epochSeconds         `json:"expires_at"`
}

// epochSeconds accepts a JSON number or a numeric string.
type epochSeconds struct {
	value int64
	set   bool
}

func (e *epochSeconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)

	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		e.value, e.set = v, true
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch seconds %q", raw)
	}
	e.value, e.set = int64(f), true
	return nil
}

// Resolve asks the portal whether token is a live session. It makes a
// single attempt bounded by the client timeout. Transport failures wrap
// ErrPortalUnavailable; any answer other than a well-formed 200 wraps
// ErrPortalRejected.
func (c *PortalClient) Resolve(ctx context.Context, token string) (*ExternalSession, error) {
	start := time.Now()
	session, err := c.resolve(ctx, token)

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrPortalUnavailable):
		result = "unavailable"
	default:
		result = "rejected"
	}
	metrics.PortalValidationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	return session, err
}

func (c *PortalClient) resolve(ctx context.Context, token string) (*ExternalSession, error) {
	endpoint, err := url.Parse(c.validateURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid validate url: %v", ErrPortalUnavailable, err)
	}
	query := endpoint.Query()
	query.Set("token", token)
	endpoint.RawQuery = query.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortalUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortalUnavailable, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxPortalResponseBytes)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return nil, fmt.Errorf("%w: status %d", ErrPortalRejected, resp.StatusCode)
	}

	var payload validateResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrPortalRejected, err)
	}

	if payload.User == nil {
		return nil, fmt.Errorf("%w: response has no user", ErrPortalRejected)
	}
	email := strings.ToLower(strings.TrimSpace(payload.User.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: response user has no email", ErrPortalRejected)
	}
	if !payload.IssuedAt.set || !payload.ExpiresAt.set {
		return nil, fmt.Errorf("%w: response is missing session timestamps", ErrPortalRejected)
	}

	role := payload.User.Role
	if role == "" {
		role = domain.RoleUser
	}

	return &ExternalSession{
		Token: token,
		User: ExternalUser{
			Email:       email,
			Username:    payload.User.Username,
			DisplayName: payload.User.DisplayName,
			Role:        role,
		},
		IssuedAt:  time.Unix(payload.IssuedAt.value, 0).UTC(),
		ExpiresAt: time.Unix(payload.ExpiresAt.value, 0).UTC(),
	}, nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultReactURL = "http://localhost:3000"

	LoginSessionStoreMemory = "memory"
	LoginSessionStoreRedis  = "redis"
)

// PortalConfig holds all configuration for the login portal.
type PortalConfig struct {
	HTTPPort        string `mapstructure:"PORTAL_HTTP_PORT"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	SecretKey          string `mapstructure:"PORTAL_SECRET_KEY"`
	SessionTokenMaxAge int    `mapstructure:"SESSION_TOKEN_MAX_AGE"`

	LDAPURL           string `mapstructure:"LDAP_URL"`
	LDAPBaseDN        string `mapstructure:"LDAP_BASE_DN"`
	LDAPDefaultDomain string `mapstructure:"LDAP_DEFAULT_DOMAIN"`
	LDAPStartTLS      bool   `mapstructure:"LDAP_START_TLS"`
	LDAPSkipTLSVerify bool   `mapstructure:"LDAP_SKIP_TLS_VERIFY"`

	// SpecialUsersRaw is a comma separated list of login=canonical pairs.
	SpecialUsersRaw       string `mapstructure:"PORTAL_SPECIAL_USERS"`
	ReactLoginRedirectURL string `mapstructure:"REACT_LOGIN_REDIRECT_URL"`
	ReactAppBaseURL       string `mapstructure:"REACT_APP_BASE_URL"`

	LoginSessionTTLMinutes int     `mapstructure:"PORTAL_LOGIN_SESSION_TTL_MINUTES"`
	LoginSessionStore      string  `mapstructure:"PORTAL_LOGIN_SESSION_STORE"`
	CookieSecure           bool    `mapstructure:"PORTAL_COOKIE_SECURE"`
	RedisAddr              string  `mapstructure:"REDIS_ADDR"`
	RedisPassword          string  `mapstructure:"REDIS_PASSWORD"`
	RedisDB                int     `mapstructure:"REDIS_DB"`
	LoginRatePerSecond     float64 `mapstructure:"PORTAL_LOGIN_RATE_PER_SECOND"`
	// TrustedProxiesRaw is a comma separated list of proxy CIDR ranges.
	TrustedProxiesRaw string `mapstructure:"PORTAL_TRUSTED_PROXIES"`
}

// LoadPortalConfig reads the portal configuration from file, environment
// variables, and defaults.
func LoadPortalConfig() (*PortalConfig, error) {
	v := newViper()

	v.SetDefault("PORTAL_HTTP_PORT", "9000")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "planauth")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "planauth-portal")
	v.SetDefault("PORTAL_SECRET_KEY", "planauth-portal-dev-secret-change-me") // CHANGE IN PRODUCTION
	v.SetDefault("SESSION_TOKEN_MAX_AGE", 3600)
	v.SetDefault("LDAP_URL", "")
	v.SetDefault("LDAP_BASE_DN", "")
	v.SetDefault("LDAP_DEFAULT_DOMAIN", "")
	v.SetDefault("LDAP_START_TLS", false)
	v.SetDefault("LDAP_SKIP_TLS_VERIFY", false)
	v.SetDefault("PORTAL_SPECIAL_USERS", "")
	v.SetDefault("REACT_LOGIN_REDIRECT_URL", "")
	v.SetDefault("REACT_APP_BASE_URL", "")
	v.SetDefault("PORTAL_LOGIN_SESSION_TTL_MINUTES", 60)
	v.SetDefault("PORTAL_LOGIN_SESSION_STORE", LoginSessionStoreMemory)
	v.SetDefault("PORTAL_COOKIE_SECURE", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PORTAL_LOGIN_RATE_PER_SECOND", 5)
	v.SetDefault("PORTAL_TRUSTED_PROXIES", "")

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg PortalConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	cfg.LoginSessionStore = strings.ToLower(strings.TrimSpace(cfg.LoginSessionStore))
	if cfg.LoginSessionStore != LoginSessionStoreRedis {
		cfg.LoginSessionStore = LoginSessionStoreMemory
	}

	return &cfg, nil
}

// TokenMaxAge is the lifetime of portal session tokens.
func (c *PortalConfig) TokenMaxAge() time.Duration {
	if c.SessionTokenMaxAge <= 0 {
		return time.Hour
	}
	return time.Duration(c.SessionTokenMaxAge) * time.Second
}

// LoginSessionTTL is how long the portal's own login session lives.
func (c *PortalConfig) LoginSessionTTL() time.Duration {
	return minutesOr(c.LoginSessionTTLMinutes, 60)
}

// SpecialUsers returns the login to canonical name overrides, keyed by
// lowercased login. Malformed pairs are skipped.
func (c *PortalConfig) SpecialUsers() map[string]string {
	users := make(map[string]string)
	for _, pair := range splitList(c.SpecialUsersRaw) {
		login, canonical, ok := strings.Cut(pair, "=")
		login = strings.ToLower(strings.TrimSpace(login))
		canonical = strings.TrimSpace(canonical)
		if !ok || login == "" || canonical == "" {
			continue
		}
		users[login] = canonical
	}
	return users
}

// TrustedProxies returns the CIDR ranges allowed to set X-Forwarded-For.
func (c *PortalConfig) TrustedProxies() []string {
	return splitList(c.TrustedProxiesRaw)
}

// ReactLoginURL is where a successful login is redirected. The configured
// URL keeps its query and gets a "/login" path suffix when it lacks one.
func (c *PortalConfig) ReactLoginURL() string {
	raw := strings.TrimSpace(c.ReactLoginRedirectURL)
	if raw == "" {
		raw = strings.TrimSpace(c.ReactAppBaseURL)
	}
	if raw == "" {
		raw = defaultReactURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(raw, "/") + "/login"
	}
	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, "/login") {
		path += "/login"
	}
	u.Path = path
	return u.String()
}

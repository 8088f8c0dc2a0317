package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultValidatePath = "/api/auth/session/validate/"
	defaultPortalURL    = "http://localhost:9000"

	minConcurrentSessions = 100
)

// ServerConfig holds all configuration for the backend server.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	CORSOrigins     string `mapstructure:"CORS_ORIGINS"`

	SecretKey                 string `mapstructure:"SECRET_KEY"`
	AccessTokenExpireMinutes  int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	SessionIdleTimeoutMinutes int    `mapstructure:"SESSION_IDLE_TIMEOUT_MINUTES"`
	MaxConcurrentSessions     int    `mapstructure:"MAX_CONCURRENT_SESSIONS"`

	PortalBaseURL               string  `mapstructure:"PORTAL_BASE_URL"`
	PortalSessionValidateURL    string  `mapstructure:"PORTAL_SESSION_VALIDATE_URL"`
	PortalSessionTimeoutSeconds float64 `mapstructure:"PORTAL_SESSION_TIMEOUT_SECONDS"`
	EnablePortalAuthBridge      bool    `mapstructure:"ENABLE_PORTAL_AUTH_BRIDGE"`
	PortalAutoProvision         bool    `mapstructure:"PORTAL_AUTO_PROVISION"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := newViper()

	v.SetDefault("HTTP_PORT", "8001")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "planauth")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "planauth-server")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("SECRET_KEY", "planauth-dev-secret-change-me") // CHANGE IN PRODUCTION
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 1440)
	v.SetDefault("SESSION_IDLE_TIMEOUT_MINUTES", 30)
	v.SetDefault("MAX_CONCURRENT_SESSIONS", 1000)
	v.SetDefault("PORTAL_BASE_URL", "")
	v.SetDefault("PORTAL_SESSION_VALIDATE_URL", "")
	v.SetDefault("PORTAL_SESSION_TIMEOUT_SECONDS", 5)
	v.SetDefault("ENABLE_PORTAL_AUTH_BRIDGE", true)
	v.SetDefault("PORTAL_AUTO_PROVISION", true)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// AccessTokenTTL is the lifetime of tokens issued at login.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return minutesOr(c.AccessTokenExpireMinutes, 1440)
}

// IdleTimeout is how long a session may go unused.
func (c *ServerConfig) IdleTimeout() time.Duration {
	return minutesOr(c.SessionIdleTimeoutMinutes, 30)
}

// MaxSessions is the session registry capacity, never below 100.
func (c *ServerConfig) MaxSessions() int {
	if c.MaxConcurrentSessions <= 0 {
		return 1000
	}
	return max(c.MaxConcurrentSessions, minConcurrentSessions)
}

// PortalTimeout bounds a single call to the portal.
func (c *ServerConfig) PortalTimeout() time.Duration {
	if c.PortalSessionTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PortalSessionTimeoutSeconds * float64(time.Second))
}

// ValidateURL is the portal's session validation endpoint. An explicit URL
// wins and is given exactly one trailing slash; otherwise the path is
// appended to the portal base URL.
func (c *ServerConfig) ValidateURL() string {
	if explicit := strings.TrimSpace(c.PortalSessionValidateURL); explicit != "" {
		return strings.TrimRight(explicit, "/") + "/"
	}
	base := strings.TrimSpace(c.PortalBaseURL)
	if base == "" {
		base = defaultPortalURL
	}
	return strings.TrimRight(base, "/") + defaultValidatePath
}

// CORSOriginList splits CORS_ORIGINS on commas.
func (c *ServerConfig) CORSOriginList() []string {
	return splitList(c.CORSOrigins)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/planauth/")
	v.AddConfigPath("$HOME/.planauth")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

// readConfigFile tolerates a missing file; any other read error is returned.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func minutesOr(minutes, fallback int) time.Duration {
	if minutes <= 0 {
		minutes = fallback
	}
	return time.Duration(minutes) * time.Minute
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

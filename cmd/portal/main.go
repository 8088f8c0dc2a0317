package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth"
	"github.com/pilab-dev/planauth/cache"
	redisstore "github.com/pilab-dev/planauth/cache/redis"
	"github.com/pilab-dev/planauth/config"
	"github.com/pilab-dev/planauth/internal/auth"
	"github.com/pilab-dev/planauth/internal/federation"
	"github.com/pilab-dev/planauth/internal/metrics"
	"github.com/pilab-dev/planauth/internal/server"
	"github.com/pilab-dev/planauth/log"
	"github.com/pilab-dev/planauth/middleware"
	"github.com/pilab-dev/planauth/mongodb"
	"github.com/pilab-dev/planauth/portal"
	"github.com/pilab-dev/planauth/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const loginBurst = 10

func main() {
	cfg, err := config.LoadPortalConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appLogger := log.Setup(cfg.LogLevel, cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting planauth portal...", log.Fields{
		"http_port":     cfg.HTTPPort,
		"ldap_url":      cfg.LDAPURL,
		"session_store": cfg.LoginSessionStore,
		"redirect_url":  cfg.ReactLoginURL(),
		"token_max_age": cfg.TokenMaxAge().String(),
	})

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
	}
	db := mongoClient.DB()

	permissions, err := mongodb.NewPermissionRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize PermissionRepository", err)
	}

	directory := federation.NewDirectory(federation.DirectoryConfig{
		URL:           cfg.LDAPURL,
		BaseDN:        cfg.LDAPBaseDN,
		DefaultDomain: cfg.LDAPDefaultDomain,
		StartTLS:      cfg.LDAPStartTLS,
		SkipTLSVerify: cfg.LDAPSkipTLSVerify,
	}, nil)
	if !directory.Configured() {
		appLogger.Warn(ctx, "LDAP_URL is not set, only portal accounts can log in")
	}

	identities := portal.NewIdentities(
		directory,
		mongodb.NewPortalAccountRepository(db),
		permissions,
		mongodb.NewLoginHistoryRepository(db),
		auth.NewBcryptPasswordHasher(bcrypt.DefaultCost),
		portal.IdentityOptions{
			SpecialUsers:  cfg.SpecialUsers(),
			DefaultDomain: cfg.LDAPDefaultDomain,
		},
	)

	codec, err := planauth.NewTokenCodec([]byte(cfg.SecretKey), nil)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize token codec", err)
	}

	sessions, closeSessions := newLoginSessionStore(ctx, cfg, appLogger)

	handler := portal.NewHandler(identities, portal.NewSessionTokens(codec, cfg.TokenMaxAge()), sessions, portal.HandlerOptions{
		RedirectURL:  cfg.ReactLoginURL(),
		CookieSecure: cfg.CookieSecure,
		LoginLimiter: middleware.NewIPRateLimiter(cfg.LoginRatePerSecond, loginBurst),
	})

	e := server.NewEcho(appLogger, server.Options{
		ServiceName:    cfg.OtelServiceName,
		TrustedProxies: cfg.TrustedProxies(),
	})
	handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	httpServer := server.NewHTTPServer(cfg.HTTPPort, e)
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("Portal listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down portal...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}
	closeSessions()
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}
	mongoClient.Close(shutdownCtx)

	appLogger.Info(shutdownCtx, "Portal gracefully stopped.")
}

// newLoginSessionStore picks the configured login session backend. The
// returned func releases it.
func newLoginSessionStore(ctx context.Context, cfg *config.PortalConfig, appLogger log.Logger) (cache.LoginSessionStore, func()) {
	if cfg.LoginSessionStore == config.LoginSessionStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err, log.Fields{"addr": cfg.RedisAddr})
		}
		store := redisstore.NewLoginSessionStore(client, "planauth", cfg.LoginSessionTTL())
		return store, func() {
			if err := client.Close(); err != nil {
				appLogger.Error(ctx, "Redis close error", err)
			}
		}
	}

	store := cache.NewMemoryLoginSessionStore(cfg.LoginSessionTTL())
	return store, store.Close
}

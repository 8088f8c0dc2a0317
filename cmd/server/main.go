package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth"
	authapi "github.com/pilab-dev/planauth/api/echo"
	"github.com/pilab-dev/planauth/config"
	"github.com/pilab-dev/planauth/internal/auth"
	"github.com/pilab-dev/planauth/internal/federation"
	"github.com/pilab-dev/planauth/internal/metrics"
	"github.com/pilab-dev/planauth/internal/server"
	"github.com/pilab-dev/planauth/log"
	"github.com/pilab-dev/planauth/mongodb"
	"github.com/pilab-dev/planauth/services"
	"github.com/pilab-dev/planauth/session"
	"github.com/pilab-dev/planauth/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	seed := flag.Bool("seed", false, "create the default admin, editor and viewer accounts if missing")
	flag.Parse()

	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appLogger := log.Setup(cfg.LogLevel, cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting planauth server...", log.Fields{
		"http_port":      cfg.HTTPPort,
		"mongo_db_name":  cfg.MongoDBName,
		"idle_timeout":   cfg.IdleTimeout().String(),
		"access_ttl":     cfg.AccessTokenTTL().String(),
		"max_sessions":   cfg.MaxSessions(),
		"portal_bridge":  cfg.EnablePortalAuthBridge,
		"validate_url":   cfg.ValidateURL(),
		"auto_provision": cfg.PortalAutoProvision,
	})

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	// --- Initialize Dependencies ---
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
	}

	userRepo, err := mongodb.NewUserRepository(ctx, mongoClient.DB())
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err)
	}

	passwordHasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)

	if *seed {
		created, err := services.NewUserService(userRepo, passwordHasher).SeedDefaults(ctx, services.DefaultAccounts)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to seed default accounts", err)
		}
		appLogger.Info(ctx, "Default accounts seeded", log.Fields{"created": created})
	}

	codec, err := planauth.NewTokenCodec([]byte(cfg.SecretKey), nil)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize token codec", err)
	}

	registry := session.New(session.Options{
		IdleTimeout: cfg.IdleTimeout(),
		Capacity:    cfg.MaxSessions(),
		ExpiryHint:  codec.ExpiryOf,
	})

	portalClient := federation.NewPortalClient(cfg.ValidateURL(), cfg.PortalTimeout(), nil)
	provisioner := federation.NewProvisioner(userRepo, passwordHasher, cfg.PortalAutoProvision)
	bridge := federation.NewBridge(cfg.EnablePortalAuthBridge, registry, portalClient, provisioner, userRepo)

	authenticator := planauth.NewAuthenticator(codec, registry, bridge, userRepo, cfg.AccessTokenTTL())
	// --- End Dependency Initialization ---

	e := server.NewEcho(appLogger, server.Options{
		ServiceName: cfg.OtelServiceName,
		CORSOrigins: cfg.CORSOriginList(),
	})
	authapi.NewAuthAPI(authenticator, userRepo, passwordHasher).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/readyz", func(c echo.Context) error {
		if err := mongoClient.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	httpServer := server.NewHTTPServer(cfg.HTTPPort, e)
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}
	mongoClient.Close(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

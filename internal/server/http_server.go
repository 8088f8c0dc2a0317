package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pilab-dev/planauth/log"
	"github.com/pilab-dev/planauth/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Options configure the echo instance shared by the planauth binaries.
type Options struct {
	ServiceName string
	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string
	// TrustedProxies lists the CIDR ranges whose X-Forwarded-For header is
	// believed. Empty means the client IP is always the socket peer.
	TrustedProxies []string
}

// NewEcho creates an echo instance with recovery, tracing, request logging
// and optional CORS.
func NewEcho(appLogger log.Logger, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(appLogger, opts.TrustedProxies)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(tracingMiddleware(opts.ServiceName))
	e.Use(requestLogger(appLogger))

	if len(opts.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}))
	}

	return e
}

func ipExtractor(appLogger log.Logger, proxies []string) echo.IPExtractor {
	var ranges []echo.TrustOption
	for _, cidr := range proxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			appLogger.Warn(context.Background(), "Ignoring invalid trusted proxy range", log.Fields{"cidr": cidr})
			continue
		}
		ranges = append(ranges, echo.TrustIPRange(ipNet))
	}
	if len(ranges) == 0 {
		return echo.ExtractIPDirect()
	}

	// Only the listed ranges are trusted, not echo's private network defaults.
	trust := append([]echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}, ranges...)
	return echo.ExtractIPFromXFFHeader(trust...)
}

// NewHTTPServer wraps handler in an http.Server listening on port.
func NewHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func requestLogger(appLogger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := log.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": req.UserAgent(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if err != nil {
				appLogger.Error(req.Context(), "HTTP Request", err, fields)
			} else {
				appLogger.Info(req.Context(), "HTTP Request", fields)
			}
			return nil
		}
	}
}

// tracingMiddleware starts a server span per request and continues any
// trace propagated by the caller.
func tracingMiddleware(serviceName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			ctx, span := tracing.Tracer.Start(ctx, fmt.Sprintf("%s %s", req.Method, route),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("service.name", serviceName),
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			c.SetRequest(req.WithContext(ctx))
			err := next(c)

			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if err != nil || status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}

// Shutdown stops srv, waiting at most timeout for in-flight requests.
func Shutdown(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

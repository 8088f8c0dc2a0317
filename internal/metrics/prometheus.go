package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Labels of AuthOutcomesTotal.
const (
	PathLocal  = "local"
	PathBridge = "bridge"

	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomeExpired       = "expired"
)

var (
	AuthOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planauth_auth_outcomes_total",
		Help: "Authentication decisions by token path and outcome.",
	}, []string{"path", "outcome"})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planauth_active_sessions",
		Help: "Sessions currently held by the session registry.",
	})
	RevokedTokensGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planauth_revoked_tokens",
		Help: "Tokens currently held in the revocation list.",
	})
	SessionEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planauth_session_evictions_total",
		Help: "Sessions evicted because the registry was at capacity.",
	})
	PortalValidationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planauth_portal_validation_seconds",
		Help:    "Latency of session validation calls to the login portal.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	LoginSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planauth_logins_success_total",
		Help: "Total number of successful logins.",
	}, []string{"service"})
	LoginFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planauth_logins_failure_total",
		Help: "Total number of failed logins.",
	}, []string{"service"})
)

// InitCustomMetrics registers the custom Prometheus metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		return
	}

	collectors := map[string]prometheus.Collector{
		"AuthOutcomesTotal":        AuthOutcomesTotal,
		"ActiveSessionsGauge":      ActiveSessionsGauge,
		"RevokedTokensGauge":       RevokedTokensGauge,
		"SessionEvictionsTotal":    SessionEvictionsTotal,
		"PortalValidationDuration": PortalValidationDuration,
		"LoginSuccessTotal":        LoginSuccessTotal,
		"LoginFailureTotal":        LoginFailureTotal,
	}
	for name, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
}

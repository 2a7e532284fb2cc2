package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "skillmatch", Name: "sessions_created_total", Help: "Number of sessions created."},
	)
	SessionsRevoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "skillmatch", Name: "sessions_revoked_total", Help: "Number of sessions revoked, by reason."},
		[]string{"reason"},
	)
	SessionsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "skillmatch", Name: "sessions_purged_total", Help: "Number of session rows deleted by cleanup."},
	)
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "skillmatch", Name: "login_attempts_total", Help: "Number of login attempts by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "skillmatch", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "skillmatch", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SessionsCreated)
	reg.MustRegister(SessionsRevoked)
	reg.MustRegister(SessionsPurged)
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sikayet_portal"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SessionLogins = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "session_logins_total", Help: "Number of successful logins."},
	)
	SessionLogouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "session_logouts_total", Help: "Number of ended sessions by reason."},
		[]string{"reason"},
	)
	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "guard_decisions_total", Help: "Access guard outcomes by required role and result."},
		[]string{"role", "result"},
	)
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "api_requests_total", Help: "Calls to the complaint API by operation and outcome."},
		[]string{"op", "outcome"},
	)
	MarkerRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "marker_layer_rebuilds_total", Help: "Full marker layer rebuilds by dashboard variant."},
		[]string{"variant"},
	)
	DashboardRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "dashboard_refreshes_total", Help: "Dashboard record list fetches by variant, trigger and outcome."},
		[]string{"variant", "trigger", "outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		RateLimitAllowed,
		RateLimitRejected,
		SessionLogins,
		SessionLogouts,
		GuardDecisions,
		APIRequests,
		MarkerRebuilds,
		DashboardRefreshes,
	)
}

package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records every console-HTTP-surface request
// (method/path/status).
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "keyward",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "path", "status"},
)

// CertLockoutsTotal counts credential lockouts tripped by the credential engine.
var CertLockoutsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "keyward",
		Subsystem: "credential",
		Name:      "lockouts_total",
		Help:      "Total number of AK lockouts tripped by repeated mismatches.",
	},
)

// TokensEvictedTotal counts coexist_num overflow evictions.
var TokensEvictedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "keyward",
		Subsystem: "session",
		Name:      "tokens_evicted_total",
		Help:      "Total number of tokens evicted by the coexist_num bound.",
	},
)

// OAuth2CodeReplaysTotal counts rejected re-redemptions of a used
// authorization code.
var OAuth2CodeReplaysTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "keyward",
		Subsystem: "oauth2",
		Name:      "code_replays_total",
		Help:      "Total number of rejected authorization-code reuse attempts.",
	},
)

// GatewayDeniesTotal counts requests Auth rejected, labeled by the
// pipeline step that rejected them.
var GatewayDeniesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "keyward",
		Subsystem: "gateway",
		Name:      "denies_total",
		Help:      "Total number of gateway authenticator rejections by step.",
	},
	[]string{"step"},
)

// All returns every keyward-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		CertLockoutsTotal,
		TokensEvictedTotal,
		OAuth2CodeReplaysTotal,
		GatewayDeniesTotal,
	}
}

// NewMetricsRegistry builds a Prometheus registry carrying the standard Go
// process collectors plus every collector in extra.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}

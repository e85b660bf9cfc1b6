package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-local Prometheus registry and the instruments
// the pipeline reports into.
type Metrics struct {
	reg *prometheus.Registry

	ChecksTotal       *prometheus.CounterVec
	FetchAttempts     prometheus.Counter
	FetchBlocked      prometheus.Counter
	IdentityRotations prometheus.Counter
	AppendErrors      prometheus.Counter
	CycleSeconds      prometheus.Histogram
}

// NewMetrics builds a fresh registry; using a private registry keeps tests
// independent of global state.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storewatch_checks_total",
		Help: "Check records appended, labelled by resulting status.",
	}, []string{"status"})
	fetchAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_fetch_attempts_total",
		Help: "Outbound fetch attempts including retries.",
	})
	fetchBlocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_fetch_blocked_total",
		Help: "Fetches that exhausted the blocked retry budget.",
	})
	rotations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_identity_rotations_total",
		Help: "Browser identity rotations triggered by 403/429 responses.",
	})
	appendErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_store_append_errors_total",
		Help: "Check records that failed to persist after the retry.",
	})
	cycleSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storewatch_cycle_seconds",
		Help:    "Wall time of a full check cycle.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	reg.MustRegister(checks, fetchAttempts, fetchBlocked, rotations, appendErrors, cycleSeconds)

	return &Metrics{
		reg:               reg,
		ChecksTotal:       checks,
		FetchAttempts:     fetchAttempts,
		FetchBlocked:      fetchBlocked,
		IdentityRotations: rotations,
		AppendErrors:      appendErrors,
		CycleSeconds:      cycleSeconds,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

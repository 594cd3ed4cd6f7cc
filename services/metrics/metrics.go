// Package metricsvc exposes the portal's Prometheus metrics.
package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yles/portal/core/ledger"
)

// Manager owns the portal's collectors and the registry they are served from.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	ledgerMutations     *prometheus.CounterVec
	balanceSyncFailures *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ ledger.Recorder = (*Manager)(nil)

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "portal",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.ledgerMutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ledger",
		Name:      "mutations_total",
		Help:      "Ledger mutations by operation and outcome",
	}, []string{"op", "outcome"})

	m.balanceSyncFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ledger",
		Name:      "balance_sync_failures_total",
		Help:      "Fine writes whose balance recompute failed; balances may be stale until recomputed",
	}, []string{"op"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route, method and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "code"})
}

// RecordLedgerMutation implements ledger.Recorder.
func (m *Manager) RecordLedgerMutation(op, outcome string) {
	m.ledgerMutations.WithLabelValues(op, outcome).Inc()
	if outcome == ledger.OutcomeSyncFailed {
		m.balanceSyncFailures.WithLabelValues(op).Inc()
	}
}

func (m *Manager) RecordHTTPRequest(route, method string, code int, elapsed time.Duration) {
	m.httpRequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// Middleware times every request, labelled by its route pattern rather than its path.
// Errors are handed to the HTTP error handler here so that the recorded code is the one sent.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordHTTPRequest(route, ctx.Request().Method, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

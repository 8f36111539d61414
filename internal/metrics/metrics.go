// Package metrics exposes Prometheus collectors for the split server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitsmart"

// Assistant call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds every collector the server records. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	rpcRequests    *prometheus.CounterVec
	rpcDuration    *prometheus.HistogramVec
	settlements    *prometheus.CounterVec
	assistantCalls *prometheus.CounterVec
	activeSessions prometheus.Gauge
	savedSplits    prometheus.Counter
}

// New registers the collectors on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rpcRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC calls by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_computed_total",
			Help:      "Settlements computed by distribution method.",
		}, []string{"method"}),
		assistantCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_calls_total",
			Help:      "Receipt extraction and chat command calls by outcome.",
		}, []string{"operation", "outcome"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		savedSplits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_saved_total",
			Help:      "Splits written to history.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRPC(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(procedure, code).Inc()
	m.rpcDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

func (m *Metrics) SettlementComputed(method string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(method).Inc()
}

func (m *Metrics) AssistantCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.assistantCalls.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) SplitSaved() {
	if m == nil {
		return
	}
	m.savedSplits.Inc()
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the bridge's prometheus collectors on a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry          *prometheus.Registry
	webhooksTotal     *prometheus.CounterVec
	settlementsTotal  *prometheus.CounterVec
	rpcFailuresTotal  *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	poolAvailable     prometheus.Gauge
	confirmationDelay prometheus.Histogram
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_webhooks_total",
		Help: "Payment webhooks processed, by final stage",
	}, []string{"stage"})

	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_settlements_total",
		Help: "Settlement record transitions, by kind and status",
	}, []string{"kind", "status"})

	rpcFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_chain_rpc_failures_total",
		Help: "Connection-level RPC failures per endpoint",
	}, []string{"endpoint"})

	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_operator_alerts_total",
		Help: "Operator alerts raised, by kind",
	}, []string{"kind"})

	pool := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_pool_available",
		Help: "Unallocated custodial wallets",
	})

	confirmation := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_chain_confirmation_seconds",
		Help:    "Time from broadcast to confirmed receipt",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	r := prometheus.NewRegistry()
	r.MustRegister(webhooks, settlements, rpcFailures, alerts, pool, confirmation)

	return &Recorder{
		registry:          r,
		webhooksTotal:     webhooks,
		settlementsTotal:  settlements,
		rpcFailuresTotal:  rpcFailures,
		alertsTotal:       alerts,
		poolAvailable:     pool,
		confirmationDelay: confirmation,
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Recorder) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Recorder) IncWebhook(stage string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(stage).Inc()
}

func (m *Recorder) IncSettlement(kind, status string) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Recorder) IncRPCFailure(endpoint string) {
	if m == nil {
		return
	}
	m.rpcFailuresTotal.WithLabelValues(endpoint).Inc()
}

func (m *Recorder) IncAlert(kind string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(kind).Inc()
}

func (m *Recorder) SetPoolAvailable(n int64) {
	if m == nil {
		return
	}
	m.poolAvailable.Set(float64(n))
}

func (m *Recorder) ObserveConfirmation(d time.Duration) {
	if m == nil {
		return
	}
	m.confirmationDelay.Observe(d.Seconds())
}

// Package metrics exposes the daemon's Prometheus metrics, built as one
// GaugeVec/CounterVec per label dimension and registered against a private
// registry rather
// than the global default so a handler can be mounted without side effects
// on other packages that might import prometheus/client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OFC status values mirrored as gauge levels for dashboards that cannot
// read the ofcs.status text column directly.
const (
	statusInactive = 0
	statusActive   = 1
	statusError    = 2
)

// Metrics holds every counter and gauge the daemon exports.
type Metrics struct {
	QueueDepth     *prometheus.GaugeVec
	ReconcileTotal *prometheus.CounterVec
	OFCStatus      *prometheus.GaugeVec
	FlowsCreated   *prometheus.CounterVec
	FlowsDeleted   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds a Metrics collector registered against a fresh registry.
func New() *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ofcd_queue_depth",
			Help: "Number of tasks currently buffered for an OFC's worker.",
		}, []string{"ofc"}),
		ReconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofcd_reconcile_total",
			Help: "Total reconciliation passes, by outcome.",
		}, []string{"ofc", "outcome"}),
		OFCStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ofcd_ofc_status",
			Help: "Current OFC health: 0=INACTIVE, 1=ACTIVE, 2=ERROR.",
		}, []string{"ofc"}),
		FlowsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofcd_flows_created_total",
			Help: "Total flow rules created on the controller.",
		}, []string{"ofc"}),
		FlowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofcd_flows_deleted_total",
			Help: "Total flow rules deleted from the controller.",
		}, []string{"ofc"}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.QueueDepth,
		m.ReconcileTotal,
		m.OFCStatus,
		m.FlowsCreated,
		m.FlowsDeleted,
	)
	return m
}

// Registry returns the registry callers should hand to promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SetQueueDepth(ofc string, depth int) {
	m.QueueDepth.WithLabelValues(ofc).Set(float64(depth))
}

func (m *Metrics) IncReconcile(ofc, outcome string) {
	m.ReconcileTotal.WithLabelValues(ofc, outcome).Inc()
}

func (m *Metrics) AddFlowsCreated(ofc string, n int) {
	if n <= 0 {
		return
	}
	m.FlowsCreated.WithLabelValues(ofc).Add(float64(n))
}

func (m *Metrics) AddFlowsDeleted(ofc string, n int) {
	if n <= 0 {
		return
	}
	m.FlowsDeleted.WithLabelValues(ofc).Add(float64(n))
}

// SetOFCStatus records the daemon's current view of an OFC's health. Unknown
// status strings are left unset rather than guessed at.
func (m *Metrics) SetOFCStatus(ofc, status string) {
	switch status {
	case "INACTIVE":
		m.OFCStatus.WithLabelValues(ofc).Set(statusInactive)
	case "ACTIVE":
		m.OFCStatus.WithLabelValues(ofc).Set(statusActive)
	case "ERROR":
		m.OFCStatus.WithLabelValues(ofc).Set(statusError)
	}
}

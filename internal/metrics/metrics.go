// Package metrics exposes ledger activity to Prometheus on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics groups the ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	batchesCommitted *prometheus.CounterVec
	commitFailures   *prometheus.CounterVec
	wasteKg          *prometheus.HistogramVec
	shipments        *prometheus.CounterVec
	shippedKg        *prometheus.CounterVec
	remainingKg      *prometheus.GaugeVec
	criticalAlerts   prometheus.Gauge
	partialCommits   prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		batchesCommitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchledger_batches_committed_total",
				Help: "Production batches fully committed",
			},
			[]string{"product"},
		),
		commitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchledger_commit_failures_total",
				Help: "Production commits aborted, by the step that failed",
			},
			[]string{"stage"},
		),
		wasteKg: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchledger_batch_waste_kg",
				Help:    "Production waste per batch",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"category"},
		),
		shipments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchledger_shipments_total",
				Help: "Shipments recorded against finished goods",
			},
			[]string{"type"},
		),
		shippedKg: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchledger_shipped_kg_total",
				Help: "Finished goods weight shipped",
			},
			[]string{"type"},
		),
		remainingKg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "batchledger_ingredient_remaining_kg",
				Help: "Remaining raw material per ingredient at the last monitor run",
			},
			[]string{"ingredient"},
		),
		criticalAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchledger_critical_stock_alerts",
			Help: "Ingredients below their critical limit at the last monitor run",
		}),
		partialCommits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchledger_partial_commits",
			Help: "Production records found incomplete at the last reconciliation",
		}),
	}

	registry.MustRegister(
		m.batchesCommitted,
		m.commitFailures,
		m.wasteKg,
		m.shipments,
		m.shippedKg,
		m.remainingKg,
		m.criticalAlerts,
		m.partialCommits,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BatchCommitted records a committed batch and its waste per category.
func (m *Metrics) BatchCommitted(product string, solid, liquid, packaging decimal.Decimal) {
	if m == nil {
		return
	}
	m.batchesCommitted.WithLabelValues(product).Inc()
	m.wasteKg.WithLabelValues("solid").Observe(solid.InexactFloat64())
	m.wasteKg.WithLabelValues("liquid").Observe(liquid.InexactFloat64())
	m.wasteKg.WithLabelValues("packaging").Observe(packaging.InexactFloat64())
}

// CommitFailed counts an aborted commit.
func (m *Metrics) CommitFailed(stage string) {
	if m == nil {
		return
	}
	m.commitFailures.WithLabelValues(stage).Inc()
}

// Shipped records one shipment.
func (m *Metrics) Shipped(shipmentType string, kg decimal.Decimal) {
	if m == nil {
		return
	}
	m.shipments.WithLabelValues(shipmentType).Inc()
	m.shippedKg.WithLabelValues(shipmentType).Add(kg.InexactFloat64())
}

// StockObserved publishes the remaining stock per ingredient and the alert count.
func (m *Metrics) StockObserved(remaining map[string]decimal.Decimal, alerts int) {
	if m == nil {
		return
	}
	m.remainingKg.Reset()
	for ingredient, kg := range remaining {
		m.remainingKg.WithLabelValues(ingredient).Set(kg.InexactFloat64())
	}
	m.criticalAlerts.Set(float64(alerts))
}

// PartialCommits publishes the reconciliation finding count.
func (m *Metrics) PartialCommits(count int) {
	if m == nil {
		return
	}
	m.partialCommits.Set(float64(count))
}

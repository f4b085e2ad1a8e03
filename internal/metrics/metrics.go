// Package metrics exposes weighment counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weighbridge/internal/weighment"
)

const namespace = "weighbridge"

// Collector implements weighment.Metrics on a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	gross            *prometheus.CounterVec
	grossFailed      *prometheus.CounterVec
	tare             prometheus.Counter
	tareFailed       *prometheus.CounterVec
	snapshotDegraded *prometheus.CounterVec
	refreshes        prometheus.Counter
	pending          prometheus.Gauge
}

// New creates a collector labelled with the terminal id.
func New(terminalID string) *Collector {
	labels := prometheus.Labels{"terminal": terminalID}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		gross: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "gross_weighments_total",
			Help:        "Gross weighments recorded, by whether a snapshot was attached.",
			ConstLabels: labels,
		}, []string{"snapshot"}),
		grossFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "gross_weighment_failures_total",
			Help:        "Gross weighments rejected, by error kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		tare: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "tare_weighments_total",
			Help:        "Transactions completed with a tare weighment.",
			ConstLabels: labels,
		}),
		tareFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "tare_weighment_failures_total",
			Help:        "Tare weighments rejected, by error kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		snapshotDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "snapshot_degraded_total",
			Help:        "Gross weighments recorded without a snapshot, by failing step.",
			ConstLabels: labels,
		}, []string{"reason"}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "worklist_refreshes_total",
			Help:        "Full re-reads of the pending-tare worklist.",
			ConstLabels: labels,
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pending_tare_transactions",
			Help:        "Transactions awaiting tare at the last worklist refresh.",
			ConstLabels: labels,
		}),
	}

	c.registry.MustRegister(
		c.gross, c.grossFailed, c.tare, c.tareFailed, c.snapshotDegraded, c.refreshes, c.pending,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) GrossRecorded(withSnapshot bool) {
	c.gross.WithLabelValues(strconv.FormatBool(withSnapshot)).Inc()
}

func (c *Collector) GrossFailed(kind string) { c.grossFailed.WithLabelValues(kind).Inc() }

func (c *Collector) TareRecorded() { c.tare.Inc() }

func (c *Collector) TareFailed(kind string) { c.tareFailed.WithLabelValues(kind).Inc() }

func (c *Collector) SnapshotDegraded(reason string) { c.snapshotDegraded.WithLabelValues(reason).Inc() }

func (c *Collector) WorklistRefreshed(pending int) {
	c.refreshes.Inc()
	c.pending.Set(float64(pending))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ weighment.Metrics = (*Collector)(nil)

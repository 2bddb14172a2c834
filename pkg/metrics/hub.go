package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HubMetrics contains Prometheus metrics for the hub core.
type HubMetrics struct {
	ReadoutsTotal         *prometheus.CounterVec
	AlertTransitionsTotal *prometheus.CounterVec
	EmailDispatchesTotal  *prometheus.CounterVec
	SweepDuration         *prometheus.HistogramVec
	SweepDevicesTotal     *prometheus.CounterVec
	SweepFailuresTotal    *prometheus.CounterVec
	AggregatedDaysTotal   prometheus.Counter
}

// NewHubMetrics creates and registers hub metrics.
func NewHubMetrics(namespace string) *HubMetrics {
	m := &HubMetrics{
		ReadoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "readouts_total",
				Help:      "Total number of submitted readouts",
			},
			[]string{"status"}, // status: accepted, rejected, untrusted
		),
		AlertTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "transitions_total",
				Help:      "Total number of alert state transitions",
			},
			[]string{"type", "transition"}, // transition: created, repeated, escalated, deescalated, resolved
		),
		EmailDispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "email_dispatches_total",
				Help:      "Total number of alert email dispatch attempts",
			},
			[]string{"status"}, // status: sent, failed
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sweeps",
				Name:      "duration_seconds",
				Help:      "Duration of periodic sweeps",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sweep"}, // sweep: liveness, aggregation
		),
		SweepDevicesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeps",
				Name:      "devices_total",
				Help:      "Total number of devices visited by sweeps",
			},
			[]string{"sweep"},
		),
		SweepFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeps",
				Name:      "failures_total",
				Help:      "Total number of per-device sweep failures",
			},
			[]string{"sweep"},
		),
		AggregatedDaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeps",
				Name:      "aggregated_days_total",
				Help:      "Total number of daily aggregates created",
			},
		),
	}

	MustRegister(
		m.ReadoutsTotal,
		m.AlertTransitionsTotal,
		m.EmailDispatchesTotal,
		m.SweepDuration,
		m.SweepDevicesTotal,
		m.SweepFailuresTotal,
		m.AggregatedDaysTotal,
	)

	return m
}

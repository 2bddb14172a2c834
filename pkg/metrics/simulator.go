package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the fleet simulator.
type SimulatorMetrics struct {
	ReadoutsGenerated  *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	ActiveDevices      prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		ReadoutsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readouts_generated_total",
				Help:      "Total number of synthetic readouts generated",
			},
			[]string{"status"}, // status: published, failed
		),
		GenerationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_failures_total",
				Help:      "Total number of readout generation failures",
			},
			[]string{"reason"},
		),
		ActiveDevices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_devices",
				Help:      "Number of simulated devices currently publishing",
			},
		),
	}

	MustRegister(
		m.ReadoutsGenerated,
		m.GenerationFailures,
		m.ActiveDevices,
	)

	return m
}

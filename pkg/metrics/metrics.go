// Package metrics carries the Prometheus instrumentation shared by the
// hub and the simulator. Every metric set registers against one private
// registry, so the /metrics endpoint serves exactly what the binary wired
// and nothing from any linked-in default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the binaries register.
var Registry = prometheus.NewRegistry()

func init() {
	// Runtime and process collectors are part of every endpoint.
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler exposes the registry over HTTP in OpenMetrics-capable format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister adds collectors to the shared registry, panicking on
// conflicts.
func MustRegister(collectors ...prometheus.Collector) {
	Registry.MustRegister(collectors...)
}

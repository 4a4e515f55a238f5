package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

func provideMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// Module wires Prometheus metrics for the application.
var Module = fx.Module("telemetry",
	fx.Provide(provideMetrics),
)

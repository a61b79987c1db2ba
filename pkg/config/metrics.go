package config

import (
	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/metrics"
	"github.com/marmos91/xgate/pkg/metrics/prometheus"
)

// MetricsResult carries the metrics artifacts built from configuration.
type MetricsResult struct {
	// Server is the /metrics HTTP listener. Nil when metrics are disabled.
	Server *metrics.Server

	// Gateway is the recorder handed to the gateway components. Nil when
	// metrics are disabled; every consumer treats nil as a no-op.
	Gateway metrics.GatewayMetrics
}

// InitializeMetrics sets up the Prometheus registry and instruments from
// configuration.
//
// Call once during startup, before constructing components that record
// metrics, so metrics.IsEnabled() reflects the configuration by the time
// recorders are wired in.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		logger.Debug("Metrics collection disabled")
		return MetricsResult{}
	}

	metrics.InitRegistry()

	result := MetricsResult{
		Server:  metrics.NewServer(cfg.Metrics.Port),
		Gateway: prometheus.NewGatewayMetrics(),
	}

	logger.Info("Metrics collection enabled", "port", cfg.Metrics.Port)
	return result
}

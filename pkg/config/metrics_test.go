package config

import "testing"

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Server != nil {
		t.Error("Expected no metrics server when metrics are disabled")
	}
	if result.Gateway != nil {
		t.Error("Expected no recorder when metrics are disabled")
	}
}

// The registry is process-global and cannot be torn down, so exactly one
// test exercises the enabled path.
func TestInitializeMetrics_Enabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090

	result := InitializeMetrics(cfg)
	if result.Server == nil {
		t.Fatal("Expected a metrics server")
	}
	if result.Gateway == nil {
		t.Fatal("Expected a gateway recorder")
	}
}

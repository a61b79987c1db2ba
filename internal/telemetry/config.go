package telemetry

// Config controls the OTLP trace exporter.
type Config struct {
	// Enabled turns tracing on. When false, Init installs a no-op tracer.
	Enabled bool

	// ServiceName and ServiceVersion identify this process to the backend.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC endpoint as host:port.
	Endpoint string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// SampleRate is the fraction of traces to keep, 0.0 through 1.0.
	SampleRate float64
}

// DefaultConfig returns the tracing defaults: disabled, and sampling
// everything once turned on.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "xgate",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

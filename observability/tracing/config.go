package tracing

import "time"

const (
	reconnectionPeriod = 30 * time.Second
	maxQueueSize       = 10000
	batchTimeout       = 5 * time.Second
	maxExportBatchSize = 512
)

// Config configures the tracer provider installed by InitGlobalTracer.
type Config struct {
	// Disable installs a no-op provider. Reports still carry the trace ID of
	// spans created by other providers in the process.
	Disable bool `yaml:"disable" default:"false"`

	// SampleRate is the parent-based sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" default:"1" validate:"gte=0,lte=1"`

	// ExporterHost and ExporterPort address the OTLP gRPC collector.
	ExporterHost string `yaml:"exporter_host" validate:"required_if=Disable false"`
	ExporterPort int    `yaml:"exporter_port" validate:"required_if=Disable false"`

	// Tags are added as resource attributes to every span.
	Tags map[string]string `yaml:"tags"`
}

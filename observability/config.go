package observability

import (
	"time"

	"github.com/kbukum/obskit/logger"
	"github.com/kbukum/obskit/logging"
	"github.com/kbukum/obskit/metrics"
	"github.com/kbukum/obskit/resource"
	"github.com/kbukum/obskit/trace"
	"github.com/kbukum/obskit/validation"
	"github.com/kbukum/obskit/version"
)

// Exporter backend names. These are a configuration seam only; no wire
// transport is implemented in this core.
const (
	ExporterNone   = "none"
	ExporterOTLP   = "otlp"
	ExporterJaeger = "jaeger"
	ExporterZipkin = "zipkin"
	ExporterCustom = "custom"
)

// ExporterConfig declares the export backend for downstream consumers.
type ExporterConfig struct {
	Type     string `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=none otlp jaeger zipkin custom"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// RetentionConfig bounds how long each store keeps records.
type RetentionConfig struct {
	Traces        time.Duration `yaml:"traces" mapstructure:"traces"`
	Metrics       time.Duration `yaml:"metrics" mapstructure:"metrics"`
	Logs          time.Duration `yaml:"logs" mapstructure:"logs"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ApplyDefaults applies default values to retention configuration.
func (c *RetentionConfig) ApplyDefaults() {
	if c.Traces == 0 {
		c.Traces = time.Hour
	}
	if c.Metrics == 0 {
		c.Metrics = time.Hour
	}
	if c.Logs == 0 {
		c.Logs = time.Hour
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Config is the single shared configuration for the whole pipeline.
type Config struct {
	ServiceName    string `yaml:"service_name" mapstructure:"service_name" validate:"required"`
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	Environment    string `yaml:"environment" mapstructure:"environment"`

	Tracing   trace.Config    `yaml:"tracing" mapstructure:"tracing"`
	Metrics   metrics.Config  `yaml:"metrics" mapstructure:"metrics"`
	Logging   logging.Config  `yaml:"logging" mapstructure:"logging"`
	Resource  resource.Config `yaml:"resource" mapstructure:"resource"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
	Exporter  ExporterConfig  `yaml:"exporter" mapstructure:"exporter"`

	// Logger configures the pipeline's own operational logging.
	Logger logger.Config `yaml:"logger" mapstructure:"logger"`
}

// DefaultConfig returns a fully enabled pipeline configuration with
// sensible defaults for development.
func DefaultConfig(serviceName string) Config {
	cfg := Config{
		ServiceName: serviceName,
		Environment: "development",
	}
	cfg.Tracing.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Logging.Enabled = true
	cfg.Logging.IncludeTraceContext = true
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset values and propagates the shared retention
// windows into the per-subsystem configs.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = version.GetShortVersion()
	}
	if c.Exporter.Type == "" {
		c.Exporter.Type = ExporterNone
	}
	c.Retention.ApplyDefaults()

	c.Tracing.Retention = c.Retention.Traces
	c.Tracing.SweepInterval = c.Retention.SweepInterval
	c.Metrics.Retention = c.Retention.Metrics
	c.Metrics.SweepInterval = c.Retention.SweepInterval
	c.Logging.Retention = c.Retention.Logs
	c.Logging.SweepInterval = c.Retention.SweepInterval

	c.Tracing.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Logger.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return c.Logger.Validate()
}

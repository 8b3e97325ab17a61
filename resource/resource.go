// Package resource describes the static identity of the instrumented
// service. A single Resource is built at startup and attached to every
// span, metric and log record the pipeline emits.
package resource

import (
	"os"

	"github.com/google/uuid"
)

// Config contains resource identity configuration.
type Config struct {
	HostName   string            `yaml:"host_name" mapstructure:"host_name"`
	InstanceID string            `yaml:"instance_id" mapstructure:"instance_id"`
	Attributes map[string]string `yaml:"attributes" mapstructure:"attributes"`
}

// Resource is the immutable service identity attached to emitted records.
type Resource struct {
	ServiceName    string            `json:"service_name"`
	ServiceVersion string            `json:"service_version,omitempty"`
	Environment    string            `json:"environment,omitempty"`
	HostName       string            `json:"host_name,omitempty"`
	InstanceID     string            `json:"instance_id,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// New builds a Resource from service identity and config. HostName falls
// back to os.Hostname and InstanceID to a fresh UUID when not configured.
func New(serviceName, serviceVersion, environment string, cfg Config) *Resource {
	host := cfg.HostName
	if host == "" {
		host, _ = os.Hostname()
	}

	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}

	attrs := make(map[string]string, len(cfg.Attributes))
	for k, v := range cfg.Attributes {
		attrs[k] = v
	}

	return &Resource{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    environment,
		HostName:       host,
		InstanceID:     instance,
		Attributes:     attrs,
	}
}

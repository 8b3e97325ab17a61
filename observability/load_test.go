package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/obskit/config"
)

func writeConfigFile(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromConfigFile(t *testing.T) {
	path := writeConfigFile(t, `service_name: checkout
environment: staging
tracing:
  enabled: true
  sampler:
    type: trace_id_ratio
    ratio: 0.25
logging:
  enabled: true
  mirror: true
retention:
  traces: 10m
`)

	cfg, err := Load("checkout", config.WithConfigFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "checkout" || cfg.Environment != "staging" {
		t.Errorf("unexpected identity: %q/%q", cfg.ServiceName, cfg.Environment)
	}
	if cfg.Tracing.Sampler.Type != "trace_id_ratio" || cfg.Tracing.Sampler.Ratio != 0.25 {
		t.Errorf("unexpected sampler: %+v", cfg.Tracing.Sampler)
	}
	if !cfg.Logging.Mirror {
		t.Error("expected the log mirror enabled from the file")
	}
	if cfg.Tracing.Retention != 10*time.Minute {
		t.Errorf("expected retention propagated to tracing, got %v", cfg.Tracing.Retention)
	}
	if cfg.ServiceVersion == "" {
		t.Error("expected a default service version")
	}
}

func TestLoadFillsServiceName(t *testing.T) {
	path := writeConfigFile(t, "environment: production\n")

	cfg, err := Load("checkout", config.WithConfigFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "checkout" {
		t.Errorf("expected the service argument as fallback, got %q", cfg.ServiceName)
	}
	if cfg.Exporter.Type != ExporterNone {
		t.Errorf("expected default exporter 'none', got %q", cfg.Exporter.Type)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `service_name: checkout
tracing:
  sampler:
    type: coin_flip
`)

	if _, err := Load("checkout", config.WithConfigFile(path)); err == nil {
		t.Error("expected error for an invalid sampler type")
	}
}

func TestLoadedConfigDrivesManager(t *testing.T) {
	path := writeConfigFile(t, `service_name: checkout
logger:
  output: stderr
logging:
  enabled: true
  min_severity: TRACE
metrics:
  enabled: true
tracing:
  enabled: true
`)

	cfg, err := Load("checkout", config.WithConfigFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	if m.Resource().ServiceName != "checkout" {
		t.Errorf("expected loaded identity on the manager, got %q", m.Resource().ServiceName)
	}
}

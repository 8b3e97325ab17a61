package observability

import (
	"github.com/kbukum/obskit/config"
)

// Load reads the pipeline configuration for a service from the standard
// config.yml and .env search paths plus environment variables, then
// applies defaults and validates the result. The returned Config is
// ready to hand to NewManager.
func Load(serviceName string, opts ...config.LoaderOption) (Config, error) {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return Config{}, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

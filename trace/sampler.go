package trace

import (
	"hash/fnv"
	"math"
)

// Sampler policy names recognized in configuration.
const (
	SamplerAlwaysOn     = "always_on"
	SamplerAlwaysOff    = "always_off"
	SamplerTraceIDRatio = "trace_id_ratio"
	SamplerParentBased  = "parent_based"
)

// SamplerConfig selects the sampling policy.
type SamplerConfig struct {
	Type        string  `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=always_on always_off trace_id_ratio parent_based"`
	Ratio       float64 `yaml:"ratio" mapstructure:"ratio" validate:"gte=0,lte=1"`
	ParentBased bool    `yaml:"parent_based" mapstructure:"parent_based"`
}

// ApplyDefaults applies default values to sampler configuration.
func (c *SamplerConfig) ApplyDefaults() {
	if c.Type == "" {
		c.Type = SamplerAlwaysOn
	}
	if c.Type == SamplerTraceIDRatio && c.Ratio == 0 {
		c.Ratio = 1.0
	}
}

// Sampler decides whether a new span is recorded. The decision is
// evaluated once, at span start.
type Sampler interface {
	// ShouldSample returns the sampling decision for a span of the given
	// trace. parent is nil when no parent context exists.
	ShouldSample(traceID string, parent *TraceContext) bool

	// Description names the policy for diagnostics.
	Description() string
}

// NewSampler builds a Sampler from configuration.
func NewSampler(cfg SamplerConfig) Sampler {
	var s Sampler
	switch cfg.Type {
	case SamplerAlwaysOff:
		s = alwaysOffSampler{}
	case SamplerTraceIDRatio:
		s = ratioSampler{ratio: cfg.Ratio}
	case SamplerParentBased:
		s = parentBasedSampler{fallback: ratioSampler{ratio: cfg.Ratio}}
	default:
		s = alwaysOnSampler{}
	}
	if cfg.ParentBased && cfg.Type != SamplerParentBased {
		s = parentBasedSampler{fallback: s}
	}
	return s
}

type alwaysOnSampler struct{}

func (alwaysOnSampler) ShouldSample(string, *TraceContext) bool { return true }
func (alwaysOnSampler) Description() string                     { return SamplerAlwaysOn }

type alwaysOffSampler struct{}

func (alwaysOffSampler) ShouldSample(string, *TraceContext) bool { return false }
func (alwaysOffSampler) Description() string                     { return SamplerAlwaysOff }

// ratioSampler samples a stable fraction of traces by hashing the trace
// ID, so every span of a trace gets the same decision.
type ratioSampler struct {
	ratio float64
}

func (s ratioSampler) ShouldSample(traceID string, _ *TraceContext) bool {
	if s.ratio >= 1 {
		return true
	}
	if s.ratio <= 0 {
		return false
	}
	h := fnv.New64a()
	h.Write([]byte(traceID))
	return float64(h.Sum64())/float64(math.MaxUint64) < s.ratio
}

func (s ratioSampler) Description() string { return SamplerTraceIDRatio }

// parentBasedSampler inherits the parent's sampled flag when a parent
// context exists, falling back to the wrapped policy at trace roots.
type parentBasedSampler struct {
	fallback Sampler
}

func (s parentBasedSampler) ShouldSample(traceID string, parent *TraceContext) bool {
	if parent != nil && parent.Valid() {
		return parent.IsSampled()
	}
	return s.fallback.ShouldSample(traceID, nil)
}

func (s parentBasedSampler) Description() string { return SamplerParentBased }

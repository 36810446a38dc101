package provider

import (
	"context"
	"time"
)

// Capabilities describes one provider's discovery-time shape, spec.md §4.C.
type Capabilities struct {
	Name       string
	Models     []string
	Valid      bool
	ModelCount int
}

// HealthCheckResult is one provider's checkHealth observation, including
// how long ValidateConfig took.
type HealthCheckResult struct {
	Name      string
	IsHealthy bool
	Error     string
	Duration  time.Duration
}

// Complexity is a coarse request-complexity bucket used by recommendation.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Registry partitions a set of candidate providers into valid/invalid via
// ValidateConfig and exposes discovery, recommendation, and health-check
// operations over them.
type Registry struct {
	valid   []Provider
	invalid []Provider
}

// NewRegistry validates every candidate and partitions them.
func NewRegistry(candidates []Provider) *Registry {
	r := &Registry{}
	for _, p := range candidates {
		if p.ValidateConfig() {
			r.valid = append(r.valid, p)
		} else {
			r.invalid = append(r.invalid, p)
		}
	}
	return r
}

// GetDiscovered returns every provider, valid and invalid.
func (r *Registry) GetDiscovered() []Provider {
	all := make([]Provider, 0, len(r.valid)+len(r.invalid))
	all = append(all, r.valid...)
	all = append(all, r.invalid...)
	return all
}

// Capabilities reports the discovery-time shape of every valid provider.
func (r *Registry) Capabilities() []Capabilities {
	caps := make([]Capabilities, 0, len(r.valid))
	for _, p := range r.valid {
		models := p.Models()
		caps = append(caps, Capabilities{
			Name:       p.Name(),
			Models:     models,
			Valid:      true,
			ModelCount: len(models),
		})
	}
	return caps
}

// FindByModel returns every valid provider that serves model.
func (r *Registry) FindByModel(modelName string) []Provider {
	var found []Provider
	for _, p := range r.valid {
		for _, m := range p.Models() {
			if m == modelName {
				found = append(found, p)
				break
			}
		}
	}
	return found
}

// Recommend returns a valid provider suited to requestType. Absent a
// richer routing table, it recommends the first valid provider whose
// name matches requestType's declared preference, falling back to the
// first valid provider.
func (r *Registry) Recommend(requestType string, preferences map[string]string) (Provider, bool) {
	if name, ok := preferences[requestType]; ok {
		for _, p := range r.valid {
			if p.Name() == name {
				return p, true
			}
		}
	}
	if len(r.valid) == 0 {
		return nil, false
	}
	return r.valid[0], true
}

// RecommendByComplexity routes high-complexity work to the first valid
// provider exposing the most models (a proxy for capability breadth) and
// any other complexity to the first valid provider, the same choice as
// Recommend. Provider costs are not compared.
func (r *Registry) RecommendByComplexity(c Complexity) (Provider, bool) {
	if len(r.valid) == 0 {
		return nil, false
	}
	switch c {
	case ComplexityHigh:
		best := r.valid[0]
		for _, p := range r.valid[1:] {
			if len(p.Models()) > len(best.Models()) {
				best = p
			}
		}
		return best, true
	default:
		return r.valid[0], true
	}
}

// CheckHealth calls ValidateConfig again on every valid provider, timing
// each call.
func (r *Registry) CheckHealth(ctx context.Context) []HealthCheckResult {
	results := make([]HealthCheckResult, 0, len(r.valid))
	for _, p := range r.valid {
		start := time.Now()
		ok := p.ValidateConfig()
		res := HealthCheckResult{Name: p.Name(), IsHealthy: ok, Duration: time.Since(start)}
		if !ok {
			res.Error = "validateConfig reported unhealthy"
		}
		results = append(results, res)
	}
	return results
}

// CreateManager builds a runtime Manager from the registry's valid
// providers, defaulting to the first one unless defaultName is set.
// breaker configures every provider's circuit breaker (spec.md §6).
func (r *Registry) CreateManager(defaultName string, breaker BreakerConfig) (*Manager, error) {
	mgr := NewManager(breaker)
	for _, p := range r.valid {
		if err := mgr.Register(p); err != nil {
			return nil, err
		}
	}
	if defaultName != "" {
		if err := mgr.SetDefault(defaultName); err != nil {
			return nil, err
		}
	} else if len(r.valid) > 0 {
		_ = mgr.SetDefault(r.valid[0].Name())
	}
	return mgr, nil
}

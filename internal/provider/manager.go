package provider

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/metrics"
	"github.com/cortexflow/scheduler-core/internal/model"
)

// BreakerConfig tunes the per-provider circuit breaker every registered
// Provider is wrapped in, sourced from spec.md §6's provider tunables
// (config.ProvidersConfig.CircuitThreshold/CircuitTimeout).
type BreakerConfig struct {
	// ConsecutiveFailures is the number of consecutive failures that
	// trips the breaker open. Defaults to 5 when zero.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing the
	// backend again. Defaults to 30s when zero.
	Timeout time.Duration
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	if b.ConsecutiveFailures == 0 {
		b.ConsecutiveFailures = 5
	}
	if b.Timeout == 0 {
		b.Timeout = 30 * time.Second
	}
	return b
}

// Manager is a dictionary of registered providers with a designated
// default, spec.md §4.C "Provider Manager". Every dispatch is wrapped in
// a per-provider circuit breaker so a backend in meltdown is given a
// cooldown instead of being hammered by the Worker Pool.
type Manager struct {
	mu       sync.RWMutex
	byName   map[string]Provider
	breakers map[string]*gobreaker.CircuitBreaker
	def      string
	breaker  BreakerConfig
}

// NewManager returns an empty Manager whose circuit breakers are
// configured per breaker (zero fields fall back to sane defaults).
func NewManager(breaker BreakerConfig) *Manager {
	return &Manager{
		byName:   make(map[string]Provider),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		breaker:  breaker.withDefaults(),
	}
}

// Register adds a provider. Duplicate registration is an explicit error.
func (m *Manager) Register(p Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[p.Name()]; exists {
		return ErrDuplicateProvider
	}
	m.byName[p.Name()] = p
	m.breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 5,
		Interval:    0,
		Timeout:     m.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.breaker.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("provider circuit breaker state change")
			metrics.SetProviderCircuitState(name, float64(to))
		},
	})
	return nil
}

// SetDefault designates the default provider by name.
func (m *Manager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return ErrUnknownProvider
	}
	m.def = name
	return nil
}

// GetProvider returns the named provider, or the default when name is
// empty. Both "unknown provider" and "no default" fail explicitly.
func (m *Manager) GetProvider(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		if m.def == "" {
			return nil, ErrNoDefaultProvider
		}
		name = m.def
	}
	p, ok := m.byName[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// SendRequest routes to req.Provider or the default, through that
// provider's circuit breaker.
func (m *Manager) SendRequest(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error) {
	p, err := m.GetProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	cb := m.breakers[p.Name()]
	m.mu.RUnlock()

	result, err := cb.Execute(func() (interface{}, error) {
		return p.SendRequest(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, NewAIProviderError(p.Name(), err)
		}
		return nil, err
	}
	return result.(*model.AIResponse), nil
}

// Has reports whether name is registered.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byName[name]
	return ok
}

// Names returns every registered provider name.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byName))
	for n := range m.byName {
		names = append(names, n)
	}
	return names
}

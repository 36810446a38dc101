// Package provider implements the Provider abstraction and Registry from
// spec.md §4.C: a capability-based interface over pluggable AI backends,
// plus discovery, routing, and validation on top of it.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexflow/scheduler-core/internal/model"
)

// ModelLimits describes a model's admission constraints, used by
// per-provider validation (spec.md §4.C "Per-provider validation").
type ModelLimits struct {
	MaxOutputTokens int
	ContextWindow   int
	CostPerInputTok float64
	CostPerOutputTk float64
}

// Provider is the capability set every backend satisfies. spec.md §9
// replaces the source's duck-typed provider objects with this named
// interface.
type Provider interface {
	Name() string
	Models() []string
	SendRequest(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error)
	CalculateCost(usage model.TokenUsage, modelName string) (float64, error)
	ValidateConfig() bool
}

// AIProviderError wraps any backend failure in a single error kind,
// preserving the original message, per spec.md §4.C "handle error".
type AIProviderError struct {
	Provider string
	Err      error
}

func (e *AIProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Err)
}

func (e *AIProviderError) Unwrap() error { return e.Err }

// NewAIProviderError wraps err as an AIProviderError for provider name.
func NewAIProviderError(name string, err error) *AIProviderError {
	return &AIProviderError{Provider: name, Err: err}
}

var (
	// ErrUnknownModel is a validation failure, not a silent fallback,
	// per spec.md §4.C.
	ErrUnknownModel      = errors.New("provider: unknown model")
	ErrMaxTokensExceeded = errors.New("provider: maxTokens exceeds model output limit")
	ErrPromptTooLong     = errors.New("provider: estimated prompt length exceeds context window")
	ErrUnknownProvider   = errors.New("provider: unknown provider")
	ErrNoDefaultProvider = errors.New("provider: no default provider configured")
	ErrDuplicateProvider = errors.New("provider: duplicate registration")
)

// defaultParameters is the shared-base "normalize request" behavior,
// spec.md §4.C.
const (
	defaultMaxTokens   = 4000
	defaultTemperature = 0.1
	defaultTopP        = 0.99
)

// NormalizeRequest populates defaults and merges caller-supplied
// parameters, returning the effective maxTokens/temperature/topP.
func NormalizeRequest(req *model.AIRequest) (maxTokens int, temperature, topP float64) {
	maxTokens, temperature, topP = defaultMaxTokens, defaultTemperature, defaultTopP
	if req.Parameters == nil {
		return
	}
	if v, ok := req.Parameters["maxTokens"].(float64); ok {
		maxTokens = int(v)
	}
	if v, ok := req.Parameters["temperature"].(float64); ok {
		temperature = v
	}
	if v, ok := req.Parameters["topP"].(float64); ok {
		topP = v
	}
	return
}

// estimateTokens is the "simple character->token heuristic" spec.md §4.C
// calls for.
func estimateTokens(s string) int {
	const charsPerToken = 4
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// ValidateAgainstModel checks maxTokens and estimated prompt length
// against the model's limits, spec.md §4.C. Returns ErrUnknownModel if
// limits are not registered for modelName.
func ValidateAgainstModel(req *model.AIRequest, modelName string, limits map[string]ModelLimits) error {
	lim, ok := limits[modelName]
	if !ok {
		return ErrUnknownModel
	}
	maxTokens, _, _ := NormalizeRequest(req)
	if maxTokens > lim.MaxOutputTokens {
		return ErrMaxTokensExceeded
	}
	if estimateTokens(req.Prompt) > lim.ContextWindow {
		return ErrPromptTooLong
	}
	return nil
}

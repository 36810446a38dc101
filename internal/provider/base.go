package provider

import "github.com/cortexflow/scheduler-core/internal/model"

// Base centralizes the shared-base behavior spec.md §4.C describes as
// applying to every provider: normalized defaults, a unified response
// shape, and per-model cost/limit lookups. Concrete providers embed Base
// and implement only SendRequest/ValidateConfig for their own backend,
// the way the teacher's Executor centralizes panic recovery and timeout
// classification for every task handler.
type Base struct {
	ProviderName string
	ModelLimits  map[string]ModelLimits
}

// Name satisfies Provider.
func (b *Base) Name() string { return b.ProviderName }

// Models satisfies Provider, derived from the registered limits table.
func (b *Base) Models() []string {
	names := make([]string, 0, len(b.ModelLimits))
	for m := range b.ModelLimits {
		names = append(names, m)
	}
	return names
}

// CalculateCost satisfies Provider using the per-model cost table.
func (b *Base) CalculateCost(usage model.TokenUsage, modelName string) (float64, error) {
	lim, ok := b.ModelLimits[modelName]
	if !ok {
		return 0, ErrUnknownModel
	}
	return float64(usage.In)*lim.CostPerInputTok + float64(usage.Out)*lim.CostPerOutputTk, nil
}

// Validate runs the per-provider model-aware checks shared by every
// backend.
func (b *Base) Validate(req *model.AIRequest, modelName string) error {
	return ValidateAgainstModel(req, modelName, b.ModelLimits)
}

// NormalizeResponse projects backend fields onto the unified AIResponse
// shape, zero-initializing Performance for the Worker to fill in.
func (b *Base) NormalizeResponse(id, modelName, content string, usage model.TokenUsage, stopReason, providerID string) *model.AIResponse {
	return &model.AIResponse{
		ID:       id,
		Provider: b.ProviderName,
		Model:    modelName,
		Content:  content,
		Metadata: model.ResponseMetadata{
			StopReason: stopReason,
			TokenUsage: usage,
			ProviderID: providerID,
		},
		Performance: model.Performance{},
	}
}

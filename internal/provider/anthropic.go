package provider

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cortexflow/scheduler-core/internal/model"
)

// AnthropicConfig carries the credentials and per-model costs an
// Anthropic-backed Provider needs, sourced from the external
// configuration loader per spec.md §6 ("Per-provider: credential(s),
// default model, ... per-model cost table").
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
	ModelLimits  map[string]ModelLimits
}

// AnthropicProvider dispatches requests to Anthropic's Messages API.
type AnthropicProvider struct {
	Base
	apiKey       string
	defaultModel string
	client       anthropic.Client
}

// NewAnthropicProvider constructs a Provider backed by
// github.com/anthropics/anthropic-sdk-go.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &AnthropicProvider{
		Base:         Base{ProviderName: "anthropic", ModelLimits: cfg.ModelLimits},
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		client:       anthropic.NewClient(opts...),
	}
}

// ValidateConfig is the cheap local check spec.md §4.C requires: absent
// credentials surface here, never as a constructor-time panic.
func (p *AnthropicProvider) ValidateConfig() bool {
	return p.apiKey != ""
}

// SendRequest calls the Anthropic Messages API and normalizes the result.
func (p *AnthropicProvider) SendRequest(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = p.defaultModel
	}
	if err := p.Validate(req, modelName); err != nil {
		return nil, err
	}
	maxTokens, temperature, _ := NormalizeRequest(req)

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, NewAIProviderError(p.Name(), err)
	}
	if len(msg.Content) == 0 {
		return nil, NewAIProviderError(p.Name(), errors.New("empty response content"))
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := model.TokenUsage{
		In:    int(msg.Usage.InputTokens),
		Out:   int(msg.Usage.OutputTokens),
		Total: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return p.NormalizeResponse(req.Type, modelName, content, usage, string(msg.StopReason), msg.ID), nil
}

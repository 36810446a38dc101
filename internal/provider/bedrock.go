package provider

import (
	"context"
	"encoding/json"
	"errors"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/cortexflow/scheduler-core/internal/model"
)

var errDisconnectedClient = errors.New("bedrock client not configured")

// BedrockConfig carries the region and per-model costs a Bedrock-backed
// Provider needs. Credentials come from the ambient AWS credential chain
// (environment, shared config, instance role) the way the SDK normally
// resolves them; nothing is hardcoded here.
type BedrockConfig struct {
	Region       string
	DefaultModel string
	ModelLimits  map[string]ModelLimits
}

type bedrockInvokeRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens_to_sample"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type bedrockInvokeResponse struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
}

// BedrockProvider dispatches requests through AWS Bedrock's InvokeModel
// API, demonstrating a second concrete backend whose wire shape (raw
// request/response JSON marshaled by hand) differs materially from the
// Anthropic SDK's typed client.
type BedrockProvider struct {
	Base
	defaultModel string
	client       *bedrockruntime.Client
	configured   bool
}

// NewBedrockProvider constructs a Provider backed by
// github.com/aws/aws-sdk-go-v2/service/bedrockruntime. Returns a provider
// whose ValidateConfig reports false if the AWS SDK cannot resolve a
// config (e.g. no credentials available) rather than failing here.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) *BedrockProvider {
	p := &BedrockProvider{
		Base:         Base{ProviderName: "bedrock", ModelLimits: cfg.ModelLimits},
		defaultModel: cfg.DefaultModel,
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return p
	}
	p.client = bedrockruntime.NewFromConfig(awsCfg)
	p.configured = true
	return p
}

// ValidateConfig reports whether the AWS client was built successfully.
func (p *BedrockProvider) ValidateConfig() bool {
	return p.configured
}

// SendRequest invokes the configured Bedrock model.
func (p *BedrockProvider) SendRequest(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error) {
	if !p.configured {
		return nil, NewAIProviderError(p.Name(), errDisconnectedClient)
	}
	modelName := req.Model
	if modelName == "" {
		modelName = p.defaultModel
	}
	if err := p.Validate(req, modelName); err != nil {
		return nil, err
	}
	maxTokens, temperature, topP := NormalizeRequest(req)

	body, err := json.Marshal(bedrockInvokeRequest{
		Prompt:      req.Prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return nil, NewAIProviderError(p.Name(), err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &modelName,
		ContentType: strPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, NewAIProviderError(p.Name(), err)
	}

	var resp bedrockInvokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, NewAIProviderError(p.Name(), err)
	}

	usage := model.TokenUsage{
		In:    estimateTokens(req.Prompt),
		Out:   estimateTokens(resp.Completion),
		Total: estimateTokens(req.Prompt) + estimateTokens(resp.Completion),
	}
	return p.NormalizeResponse(req.Type, modelName, resp.Completion, usage, resp.StopReason, ""), nil
}

func strPtr(s string) *string { return &s }

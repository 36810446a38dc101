package model

import (
	"strings"
	"time"
)

// AIRequest is the producer-supplied input, validated before an id is issued.
type AIRequest struct {
	Prompt     string                 `json:"prompt"`
	Provider   string                 `json:"provider,omitempty"`
	Model      string                 `json:"model,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Priority   Priority               `json:"priority,omitempty"`
}

// PromptEmpty reports whether the prompt fails the non-empty, non-whitespace check.
func (r *AIRequest) PromptEmpty() bool {
	return strings.TrimSpace(r.Prompt) == ""
}

// TokenUsage is the provider-reported token accounting for one response.
type TokenUsage struct {
	In    int `json:"in"`
	Out   int `json:"out"`
	Total int `json:"total"`
}

// ResponseMetadata carries backend-specific detail normalized onto the
// unified AIResponse shape.
type ResponseMetadata struct {
	StopReason string     `json:"stopReason,omitempty"`
	TokenUsage TokenUsage `json:"tokenUsage"`
	ProviderID string     `json:"providerId,omitempty"`
}

// Performance carries timing/retry accounting filled in by the Worker,
// not the Provider (the provider zero-initializes it per spec.md §4.C).
type Performance struct {
	ResponseTimeMs int64 `json:"responseTimeMs"`
	RetryCount     int   `json:"retryCount"`
}

// AIResponse is the normalized output of a provider dispatch.
type AIResponse struct {
	ID          string           `json:"id"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Content     string           `json:"content"`
	Metadata    ResponseMetadata `json:"metadata"`
	Performance Performance      `json:"performance"`
}

// RequestRecord is the in-memory lifecycle record owned exclusively by the
// Request Processor, keyed by request id.
type RequestRecord struct {
	RequestID string                 `json:"requestId"`
	Status    Status                 `json:"status"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
	Provider  string                 `json:"provider,omitempty"`
	Model     string                 `json:"model,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Snapshot returns a shallow copy safe to hand to callers outside the
// owning store (readers must not observe a record mid-mutation).
func (r *RequestRecord) Snapshot() *RequestRecord {
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

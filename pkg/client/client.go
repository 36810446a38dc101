package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cortexflow/scheduler-core/internal/model"
)

// Client is a hand-rolled net/http client for scheduler-core's HTTP
// surface. SPEC_FULL.md's API is small enough that a generated client
// adds more indirection than it saves; the WebSocket client below still
// carries the pack's gorilla/websocket dependency.
type Client struct {
	baseURL string
	opts    *options
	ws      *WebSocketClient
}

// New creates a new Client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{baseURL: baseURL, opts: o}, nil
}

// CreateRequest is the body of SubmitRequest/SendRequestSync.
type CreateRequest struct {
	Prompt     string                 `json:"prompt"`
	Provider   string                 `json:"provider,omitempty"`
	Model      string                 `json:"model,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Priority   string                 `json:"priority,omitempty"`
}

// SubmitResponse is the response to a successful SubmitRequest.
type SubmitResponse struct {
	RequestID string       `json:"requestId"`
	Status    model.Status `json:"status"`
}

// CancelResponse is the response to a successful CancelRequestByID.
type CancelResponse struct {
	Success bool         `json:"Success"`
	Status  model.Status `json:"Status"`
	Reason  string       `json:"Reason,omitempty"`
}

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scheduler-core: status %d: %s", e.StatusCode, e.Message)
}

// SubmitRequest admits req to the Priority Queue and returns its id.
func (c *Client) SubmitRequest(ctx context.Context, req CreateRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/requests/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendRequestSync bypasses the queue and dispatches synchronously.
func (c *Client) SendRequestSync(ctx context.Context, req CreateRequest) (*model.AIResponse, error) {
	var out model.AIResponse
	if err := c.do(ctx, http.MethodPost, "/v1/requests/sync", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRequestByID fetches a request's current lifecycle record.
func (c *Client) GetRequestByID(ctx context.Context, requestID string) (*model.RequestRecord, error) {
	var out model.RequestRecord
	if err := c.do(ctx, http.MethodGet, "/v1/requests/"+requestID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelRequestByID cancels a pending request.
func (c *Client) CancelRequestByID(ctx context.Context, requestID string) (*CancelResponse, error) {
	var out CancelResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/requests/"+requestID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckHealth checks the health of the scheduling core.
func (c *Client) CheckHealth(ctx context.Context) (*model.HealthSnapshot, error) {
	var out model.HealthSnapshot
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkers returns the Worker Pool's composed health report.
func (c *Client) ListWorkers(ctx context.Context) (*model.PoolHealth, error) {
	var out model.PoolHealth
	if err := c.do(ctx, http.MethodGet, "/admin/workers", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQueueHealth returns the Queue Manager's composed health report.
func (c *Client) GetQueueHealth(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/admin/queues", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectWebSocket establishes a WebSocket connection for the
// health/observability event stream.
func (c *Client) ConnectWebSocket(ctx context.Context) error {
	if c.ws != nil && c.ws.IsConnected() {
		return nil
	}
	c.ws = newWebSocketClient(c.baseURL, c.opts.apiKey)
	return c.ws.Connect(ctx)
}

// Events returns a channel that receives WebSocket events. Must call
// ConnectWebSocket first.
func (c *Client) Events() <-chan *Event {
	if c.ws == nil {
		ch := make(chan *Event)
		close(ch)
		return ch
	}
	return c.ws.Events()
}

// CloseWebSocket closes the WebSocket connection.
func (c *Client) CloseWebSocket() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

// SubscribeEvents subscribes to specific event types.
func (c *Client) SubscribeEvents(eventTypes ...EventType) error {
	if c.ws == nil {
		return fmt.Errorf("websocket not connected")
	}
	return c.ws.Subscribe(eventTypes...)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.opts.applyHeaders(req)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

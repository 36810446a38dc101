// Package handlers implements scheduler-core's HTTP surface, spec.md's
// External Interfaces section, grounded on the teacher's handlers
// package layout (one handler type per resource, JSON-only responses).
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/model"
	"github.com/cortexflow/scheduler-core/internal/processor"
)

// RequestHandler handles AI request submission, lookup, and cancellation.
type RequestHandler struct {
	processor *processor.Processor
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(p *processor.Processor) *RequestHandler {
	return &RequestHandler{processor: p}
}

// CreateRequest is the POST /v1/requests body.
type CreateRequest struct {
	Prompt     string                 `json:"prompt"`
	Provider   string                 `json:"provider,omitempty"`
	Model      string                 `json:"model,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Priority   string                 `json:"priority,omitempty"`
}

func (c CreateRequest) toModel() *model.AIRequest {
	priority := model.PriorityNormal
	if c.Priority != "" {
		if p, err := model.ParsePriority(c.Priority); err == nil {
			priority = p
		}
	}
	return &model.AIRequest{
		Prompt:     c.Prompt,
		Provider:   c.Provider,
		Model:      c.Model,
		Parameters: c.Parameters,
		Context:    c.Context,
		Type:       c.Type,
		Priority:   priority,
	}
}

// Create handles POST /v1/requests: admits a request to the queue.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.processor.EnqueueRequest(r.Context(), body.toModel())
	if err != nil {
		h.respondProcessorError(w, err)
		return
	}

	logger.Info().Str("request_id", id).Msg("request enqueued")
	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"requestId": id,
		"status":    model.StatusPending,
	})
}

// CreateSync handles POST /v1/requests/sync: bypasses the queue and
// dispatches synchronously, spec.md's ProcessRequest operation.
func (h *RequestHandler) CreateSync(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.processor.ProcessRequest(r.Context(), body.toModel())
	if err != nil {
		h.respondProcessorError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/requests/{requestID}.
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	rec, err := h.processor.GetRequestStatus(id)
	if err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "request not found")
			return
		}
		logger.Error().Err(err).Str("request_id", id).Msg("failed to get request status")
		h.respondError(w, http.StatusInternalServerError, "failed to get request status")
		return
	}

	h.respondJSON(w, http.StatusOK, rec.Snapshot())
}

// Cancel handles DELETE /v1/requests/{requestID}.
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	res, err := h.processor.CancelRequest(id)
	if err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "request not found")
			return
		}
		logger.Error().Err(err).Str("request_id", id).Msg("failed to cancel request")
		h.respondError(w, http.StatusInternalServerError, "failed to cancel request")
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	h.respondJSON(w, status, res)
}

// Health handles GET /v1/health.
func (h *RequestHandler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.processor.GetHealthStatus(r.Context())
	status := http.StatusOK
	if !snapshot.IsHealthy {
		status = http.StatusServiceUnavailable
	}
	h.respondJSON(w, status, snapshot)
}

func (h *RequestHandler) respondProcessorError(w http.ResponseWriter, err error) {
	var ve *processor.ValidationError
	if errors.As(err, &ve) {
		h.respondError(w, http.StatusBadRequest, ve.Error())
		return
	}
	var re *processor.RateLimitError
	if errors.As(err, &re) {
		h.respondError(w, http.StatusTooManyRequests, re.Error())
		return
	}
	logger.Error().Err(err).Msg("request processing failed")
	h.respondError(w, http.StatusInternalServerError, err.Error())
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *RequestHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *RequestHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

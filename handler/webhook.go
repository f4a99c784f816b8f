package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paybridge/paybridge/infra/logger"
	"github.com/paybridge/paybridge/infra/queue"
	"github.com/paybridge/paybridge/infra/response"
	"github.com/paybridge/paybridge/provider"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookValidator is the slice of the payment manager webhook ingestion needs
type WebhookValidator interface {
	ValidateWebhook(providerName string, headers map[string]string, rawBody []byte) (bool, error)
}

// WebhookHandler receives provider callbacks, checks their signatures on the
// raw body and hands valid ones to the processing queue
type WebhookHandler struct {
	validator WebhookValidator
	queue     *queue.WebhookQueue
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(validator WebhookValidator, q *queue.WebhookQueue) *WebhookHandler {
	return &WebhookHandler{validator: validator, queue: q}
}

// Receive handles POST /v1/webhooks/{provider}. The body is read exactly
// once and passed unmodified to signature validation
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	providerName := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	if providerName == "" {
		response.Error(w, http.StatusBadRequest, "Provider name is required", nil)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	valid, err := h.validator.ValidateWebhook(providerName, headers, rawBody)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown payment provider", err)
		return
	}
	if !valid {
		logger.Warn("webhook rejected: invalid signature", logger.LogContext{
			Provider: providerName,
			Fields: map[string]any{
				"remoteAddr": r.RemoteAddr,
				"bodySize":   len(rawBody),
			},
		})
		response.Error(w, http.StatusForbidden, "Invalid webhook signature", provider.ErrWebhookSignatureInvalid)
		return
	}

	job := queue.Job{
		Provider:   providerName,
		Body:       rawBody,
		ReceivedAt: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(job); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			response.Error(w, http.StatusServiceUnavailable, "Webhook queue is full, retry later", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to queue webhook", err)
		return
	}

	response.Success(w, http.StatusOK, "Webhook accepted", nil)
}

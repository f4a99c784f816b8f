package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paybridge/paybridge/infra/logger"
	"github.com/paybridge/paybridge/infra/response"
	"github.com/paybridge/paybridge/provider"
)

const requestTimeout = 30 * time.Second

// PaymentService is the slice of the payment manager the HTTP layer needs
type PaymentService interface {
	ChargeWithFallback(ctx context.Context, request provider.ChargeRequest, providers ...string) (*provider.ChargeResponse, error)
	Verify(ctx context.Context, reference, providerName string) (*provider.VerificationResponse, error)
	GetEnabledProviders() map[string]map[string]string
	GetFallbackChain() []string
	RefreshHealth(ctx context.Context) map[string]bool
}

// PaymentHandler exposes charge, verify and provider inspection endpoints
type PaymentHandler struct {
	service PaymentService
}

// NewPaymentHandler creates a payment handler backed by a payment service
func NewPaymentHandler(service PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type chargeBody struct {
	provider.ChargeRequest
	Providers []string `json:"providers,omitempty"`
}

// Charge handles POST /v1/payments. An optional providers list overrides
// the configured fallback chain for this request only
func (h *PaymentHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var body chargeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.ChargeWithFallback(ctx, body.ChargeRequest, body.Providers...)
	if err != nil {
		h.writeChargeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Payment initiated", result)
}

func (h *PaymentHandler) writeChargeError(w http.ResponseWriter, err error) {
	var invalid *provider.InvalidRequestError
	var exhausted *provider.AllProvidersFailedError
	switch {
	case errors.As(err, &invalid):
		response.Error(w, http.StatusBadRequest, "Invalid payment request", err)
	case errors.As(err, &exhausted):
		logger.Error("all providers failed to process charge", logger.LogContext{
			Fields: map[string]any{"error": err.Error()},
		})
		response.Error(w, http.StatusBadGateway, "No payment provider could process the request", err)
	case errors.Is(err, provider.ErrDriverNotFound):
		response.Error(w, http.StatusNotFound, "Unknown payment provider", err)
	default:
		response.Error(w, http.StatusInternalServerError, "Payment failed", err)
	}
}

// Verify handles GET /v1/payments/{reference}. The provider query parameter
// forces a specific provider instead of reference prefix detection
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		response.Error(w, http.StatusBadRequest, "Payment reference is required", nil)
		return
	}
	providerName := strings.TrimSpace(r.URL.Query().Get("provider"))

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Verify(ctx, reference, providerName)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Payment verified", result)
}

func (h *PaymentHandler) writeVerifyError(w http.ResponseWriter, err error) {
	var exhausted *provider.AllProvidersFailedError
	switch {
	case errors.Is(err, provider.ErrTransactionNotFound):
		response.Error(w, http.StatusNotFound, "Transaction not found", err)
	case errors.Is(err, provider.ErrDriverNotFound):
		response.Error(w, http.StatusNotFound, "Unknown payment provider", err)
	case errors.As(err, &exhausted):
		response.Error(w, http.StatusBadGateway, "Verification failed across all providers", err)
	default:
		response.Error(w, http.StatusInternalServerError, "Verification failed", err)
	}
}

// Providers handles GET /v1/providers: enabled providers and the current
// fallback chain, credentials omitted
func (h *PaymentHandler) Providers(w http.ResponseWriter, r *http.Request) {
	enabled := h.service.GetEnabledProviders()
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	response.Success(w, http.StatusOK, "Enabled providers", map[string]any{
		"providers":     names,
		"fallbackChain": h.service.GetFallbackChain(),
	})
}

// Health handles GET /health: probes every enabled provider and reports
// per-provider reachability
func (h *PaymentHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	statuses := h.service.RefreshHealth(ctx)
	healthy := true
	for _, up := range statuses {
		if !up {
			healthy = false
			break
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	response.Success(w, code, "Provider health", map[string]any{
		"healthy":   healthy,
		"providers": statuses,
	})
}

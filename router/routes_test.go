package router

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/handler"
	"github.com/paybridge/paybridge/provider"
)

func TestRoutes(t *testing.T) {
	r := chi.NewRouter()
	require.NotPanics(t, func() {
		Routes(r, &handler.PaymentHandler{}, &handler.WebhookHandler{})
	})

	routes := make(map[string]bool)
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})

	assert.True(t, routes["GET /health"])
	assert.True(t, routes["POST /v1/payments"])
	assert.True(t, routes["GET /v1/payments/{reference}"])
	assert.True(t, routes["GET /v1/providers"])
	assert.True(t, routes["POST /v1/webhooks/{provider}"])
}

func TestDriversRegisteredOnImport(t *testing.T) {
	available := provider.GetAvailableProviders()
	assert.Contains(t, available, "paystack")
	assert.Contains(t, available, "stripe")
	assert.Contains(t, available, "flutterwave")
	assert.Contains(t, available, "monnify")
}

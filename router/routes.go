package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/paybridge/paybridge/handler"

	// Import for side-effect registration
	_ "github.com/paybridge/paybridge/provider/flutterwave"
	_ "github.com/paybridge/paybridge/provider/monnify"
	_ "github.com/paybridge/paybridge/provider/paystack"
	_ "github.com/paybridge/paybridge/provider/stripe"
)

// Routes mounts the payment and webhook endpoints
func Routes(r chi.Router, payments *handler.PaymentHandler, webhooks *handler.WebhookHandler) {
	r.Get("/health", payments.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/payments", payments.Charge)
		r.Get("/payments/{reference}", payments.Verify)
		r.Get("/providers", payments.Providers)
		r.Post("/webhooks/{provider}", webhooks.Receive)
	})
}

package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/paybridge/paybridge/provider"
)

const signatureHeader = "Stripe-Signature"

var supportedCurrencies = []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "NGN", "ZAR", "KES"}

// StripeProvider implements the provider.PaymentProvider contract on top of
// the official Stripe SDK using Checkout Sessions for hosted payments
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	api           *client.API
}

// NewProvider creates a new Stripe driver
func NewProvider() provider.PaymentProvider {
	return &StripeProvider{}
}

// Initialize sets up the Stripe SDK client
func (p *StripeProvider) Initialize(config map[string]string) error {
	p.secretKey = config["secretKey"]
	if p.secretKey == "" {
		return errors.New("stripe: secretKey is required")
	}
	p.webhookSecret = config["webhookSecret"]

	p.api = &client.API{}
	p.api.Init(p.secretKey, nil)
	return nil
}

// GetRequiredConfig returns the configuration fields this driver requires
func (p *StripeProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "secretKey",
			Required:    true,
			Type:        "string",
			Description: "Stripe secret key",
			Example:     "sk_test_4eC39HqLyjWDarjtT1zdp7dc",
			Pattern:     `^(sk|rk)_`,
			MinLength:   10,
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "Stripe webhook signing secret",
			Example:     "whsec_cd39cba140112a8b6b2b00a975da148b",
			Pattern:     `^whsec_`,
		},
	}
}

// ValidateConfig validates configuration against driver requirements
func (p *StripeProvider) ValidateConfig(config map[string]string) error {
	return provider.ValidateConfigFields("stripe", config, p.GetRequiredConfig())
}

// Charge creates a Checkout Session and returns its hosted payment URL
func (p *StripeProvider) Charge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	description := request.Description
	if description == "" {
		description = "Payment " + request.Reference
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(request.Reference),
		CustomerEmail:     stripe.String(request.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(request.Currency)),
					UnitAmount: stripe.Int64(request.AmountMinor()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if request.CallbackURL != "" {
		params.SuccessURL = stripe.String(request.CallbackURL)
		params.CancelURL = stripe.String(request.CallbackURL)
	}
	params.AddMetadata("reference", request.Reference)
	params.Context = ctx

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: checkout session failed: %w", err)
	}

	return &provider.ChargeResponse{
		Reference:        request.Reference,
		AuthorizationURL: session.URL,
		AccessCode:       session.ID,
		Status:           "pending",
		Provider:         "stripe",
	}, nil
}

// Verify resolves a Checkout Session or PaymentIntent to its current state
func (p *StripeProvider) Verify(ctx context.Context, verificationID string) (*provider.VerificationResponse, error) {
	switch {
	case strings.HasPrefix(verificationID, "cs_"):
		return p.verifySession(ctx, verificationID)
	case strings.HasPrefix(verificationID, "pi_"):
		return p.verifyIntent(ctx, verificationID)
	default:
		return nil, fmt.Errorf("stripe: cannot verify %q: expected a cs_ or pi_ identifier", verificationID)
	}
}

func (p *StripeProvider) verifySession(ctx context.Context, sessionID string) (*provider.VerificationResponse, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: session retrieval failed: %w", err)
	}

	verification := &provider.VerificationResponse{
		Reference: session.ClientReferenceID,
		Status:    string(session.PaymentStatus),
		Amount:    float64(session.AmountTotal) / 100,
		Currency:  strings.ToUpper(string(session.Currency)),
		Provider:  "stripe",
	}
	if session.CustomerEmail != "" {
		verification.Customer = &provider.Customer{Email: session.CustomerEmail}
	}
	return verification, nil
}

func (p *StripeProvider) verifyIntent(ctx context.Context, intentID string) (*provider.VerificationResponse, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: payment intent retrieval failed: %w", err)
	}

	reference := intent.Metadata["reference"]
	if reference == "" {
		reference = intent.ID
	}
	return &provider.VerificationResponse{
		Reference: reference,
		Status:    string(intent.Status),
		Amount:    float64(intent.Amount) / 100,
		Currency:  strings.ToUpper(string(intent.Currency)),
		Provider:  "stripe",
	}, nil
}

// ValidateWebhook verifies the Stripe-Signature header against the raw body
// using the webhook signing secret
func (p *StripeProvider) ValidateWebhook(headers map[string]string, rawBody []byte) bool {
	if p.webhookSecret == "" {
		return false
	}
	signature := provider.HeaderValue(headers, signatureHeader)
	if signature == "" {
		return false
	}
	_, err := webhook.ConstructEvent(rawBody, signature, p.webhookSecret)
	return err == nil
}

// HealthCheck probes the balance endpoint
func (p *StripeProvider) HealthCheck(ctx context.Context) bool {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	_, err := p.api.Balance.Get(params)
	return err == nil
}

// GetSupportedCurrencies lists ISO currency codes this driver accepts
func (p *StripeProvider) GetSupportedCurrencies() []string {
	out := make([]string, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// IsCurrencySupported reports whether the driver accepts a currency
func (p *StripeProvider) IsCurrencySupported(currency string) bool {
	currency = strings.ToUpper(currency)
	for _, c := range supportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// ExtractWebhookReference pulls the original reference from an event payload.
// Checkout events carry it as client_reference_id, intent events in metadata
func (p *StripeProvider) ExtractWebhookReference(payload map[string]any) (string, bool) {
	object, ok := webhookObject(payload)
	if !ok {
		return "", false
	}
	if reference, ok := object["client_reference_id"].(string); ok && reference != "" {
		return reference, true
	}
	if metadata, ok := object["metadata"].(map[string]any); ok {
		if reference, ok := metadata["reference"].(string); ok && reference != "" {
			return reference, true
		}
	}
	return "", false
}

// ExtractWebhookStatus pulls the payment status from an event payload
func (p *StripeProvider) ExtractWebhookStatus(payload map[string]any) string {
	object, ok := webhookObject(payload)
	if !ok {
		return ""
	}
	if status, ok := object["payment_status"].(string); ok && status != "" {
		return status
	}
	if status, ok := object["status"].(string); ok {
		return status
	}
	return ""
}

// ExtractWebhookChannel reports the payment method type when present
func (p *StripeProvider) ExtractWebhookChannel(payload map[string]any) (string, bool) {
	object, ok := webhookObject(payload)
	if !ok {
		return "", false
	}
	if types, ok := object["payment_method_types"].([]any); ok && len(types) > 0 {
		if channel, ok := types[0].(string); ok && channel != "" {
			return channel, true
		}
	}
	return "", false
}

// ResolveVerificationID prefers the stored session or intent identifier,
// since Stripe cannot look up a payment by an external reference directly
func (p *StripeProvider) ResolveVerificationID(reference, internalID string) string {
	if internalID != "" {
		return internalID
	}
	return reference
}

func webhookObject(payload map[string]any) (map[string]any, bool) {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	object, ok := data["object"].(map[string]any)
	return object, ok
}

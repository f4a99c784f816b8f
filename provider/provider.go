package provider

import (
	"context"
)

// ConfigField describes one configuration key a provider requires
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "url", "email", "boolean"
	Description string `json:"description"`
	Example     string `json:"example,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

// PaymentProvider is the capability contract every gateway driver
// implements. All provider-specific parsing (amount scaling, auth header
// schemes, endpoint shapes) lives behind this interface and never leaks
// into the dispatch engine.
type PaymentProvider interface {
	// Initialize sets up the driver with authentication and configuration
	Initialize(config map[string]string) error

	// GetRequiredConfig returns the configuration fields this driver requires
	GetRequiredConfig() []ConfigField

	// ValidateConfig validates configuration against driver requirements
	ValidateConfig(config map[string]string) error

	// Charge initiates a payment and returns the authorization details
	Charge(ctx context.Context, request ChargeRequest) (*ChargeResponse, error)

	// Verify retrieves the settled state of a payment by verification ID
	Verify(ctx context.Context, verificationID string) (*VerificationResponse, error)

	// ValidateWebhook checks an inbound webhook's signature. rawBody must be
	// the unmodified request body: signatures are computed over the exact
	// bytes the provider sent, never a re-serialized copy.
	ValidateWebhook(headers map[string]string, rawBody []byte) bool

	// HealthCheck is a lightweight reachability probe
	HealthCheck(ctx context.Context) bool

	// GetSupportedCurrencies lists ISO currency codes the provider accepts
	GetSupportedCurrencies() []string

	// IsCurrencySupported reports whether the provider accepts a currency
	IsCurrencySupported(currency string) bool

	// ExtractWebhookReference pulls the transaction reference out of a
	// webhook payload, when the payload carries one
	ExtractWebhookReference(payload map[string]any) (string, bool)

	// ExtractWebhookStatus pulls the provider-native status out of a
	// webhook payload. Callers normalize it; drivers never do.
	ExtractWebhookStatus(payload map[string]any) string

	// ExtractWebhookChannel pulls the payment channel out of a webhook payload
	ExtractWebhookChannel(payload map[string]any) (string, bool)

	// ResolveVerificationID maps a caller-visible reference and the
	// provider-internal ID captured at charge time to the identifier this
	// provider verifies by: most specific internal ID first, reference as
	// the fallback.
	ResolveVerificationID(reference, internalID string) string
}

// ProviderFactory creates a new, uninitialized driver instance
type ProviderFactory func() PaymentProvider

package flutterwave

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paybridge/paybridge/provider"
)

const (
	apiBaseURL = "https://api.flutterwave.com/v3"

	endpointPayments = "/payments"
	endpointVerify   = "/transactions/verify_by_reference"

	signatureHeader = "verif-hash"
)

var supportedCurrencies = []string{"NGN", "USD", "EUR", "GBP", "GHS", "KES", "ZAR", "UGX", "TZS", "XAF", "XOF"}

// FlutterwaveProvider implements the provider.PaymentProvider contract for
// Flutterwave's v3 standard payments API
type FlutterwaveProvider struct {
	secretKey     string
	webhookSecret string
	client        *provider.ProviderHTTPClient
	channels      *provider.ChannelMapper
}

// NewProvider creates a new Flutterwave driver
func NewProvider() provider.PaymentProvider {
	return &FlutterwaveProvider{
		channels: provider.NewChannelMapper(),
	}
}

// Initialize sets up the driver with authentication credentials
func (p *FlutterwaveProvider) Initialize(config map[string]string) error {
	p.secretKey = config["secretKey"]
	if p.secretKey == "" {
		return errors.New("flutterwave: secretKey is required")
	}
	p.webhookSecret = config["webhookSecret"]

	baseURL := config["baseURL"]
	if baseURL == "" {
		baseURL = apiBaseURL
	}
	clientConfig := provider.CreateHTTPClientConfig(baseURL, provider.DefaultRequestTimeout)
	clientConfig.DefaultHeaders["Authorization"] = "Bearer " + p.secretKey
	p.client = provider.NewProviderHTTPClient(clientConfig)
	return nil
}

// GetRequiredConfig returns the configuration fields this driver requires
func (p *FlutterwaveProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "secretKey",
			Required:    true,
			Type:        "string",
			Description: "Flutterwave secret key",
			Example:     "FLWSECK_TEST-4e331b3071cd50064f55e3dc62f1851a",
			MinLength:   10,
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "Flutterwave webhook verification hash",
		},
	}
}

// ValidateConfig validates configuration against driver requirements
func (p *FlutterwaveProvider) ValidateConfig(config map[string]string) error {
	return provider.ValidateConfigFields("flutterwave", config, p.GetRequiredConfig())
}

// Charge creates a standard payment and returns the hosted payment link
func (p *FlutterwaveProvider) Charge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	customer := map[string]any{"email": request.Email}
	if request.Customer != nil {
		if name := strings.TrimSpace(request.Customer.Name + " " + request.Customer.Surname); name != "" {
			customer["name"] = name
		}
		if request.Customer.PhoneNumber != "" {
			customer["phonenumber"] = request.Customer.PhoneNumber
		}
	}

	body := map[string]any{
		"tx_ref":   request.Reference,
		"amount":   request.Amount,
		"currency": strings.ToUpper(request.Currency),
		"customer": customer,
	}
	if request.CallbackURL != "" {
		body["redirect_url"] = request.CallbackURL
	}
	if options := p.channels.MapChannels(request.Channels, "flutterwave"); options != nil {
		body["payment_options"] = strings.Join(options, ",")
	}
	if len(request.Metadata) > 0 {
		body["meta"] = request.Metadata
	}

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpointPayments,
		Body:     body,
	})
	if err != nil {
		return nil, fmt.Errorf("flutterwave: charge request failed: %w", err)
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("flutterwave: failed to parse charge response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("flutterwave: charge rejected: %s", result.Message)
	}

	return &provider.ChargeResponse{
		Reference:        request.Reference,
		AuthorizationURL: result.Data.Link,
		Status:           "pending",
		Provider:         "flutterwave",
	}, nil
}

// Verify retrieves the settled state of a transaction by its tx_ref
func (p *FlutterwaveProvider) Verify(ctx context.Context, verificationID string) (*provider.VerificationResponse, error) {
	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:      "GET",
		Endpoint:    endpointVerify,
		QueryParams: map[string]string{"tx_ref": verificationID},
	})
	if err != nil {
		return nil, fmt.Errorf("flutterwave: verify request failed: %w", err)
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			TxRef       string  `json:"tx_ref"`
			Status      string  `json:"status"`
			Amount      float64 `json:"amount"`
			Currency    string  `json:"currency"`
			CreatedAt   string  `json:"created_at"`
			PaymentType string  `json:"payment_type"`
			Card        struct {
				Type   string `json:"type"`
				Issuer string `json:"issuer"`
			} `json:"card"`
			Customer struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("flutterwave: failed to parse verify response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("flutterwave: verification rejected: %s", result.Message)
	}

	verification := &provider.VerificationResponse{
		Reference: result.Data.TxRef,
		Status:    result.Data.Status,
		Amount:    result.Data.Amount, // Flutterwave reports major units
		Currency:  strings.ToUpper(result.Data.Currency),
		Channel:   result.Data.PaymentType,
		CardType:  result.Data.Card.Type,
		Bank:      result.Data.Card.Issuer,
		Provider:  "flutterwave",
	}
	if result.Data.Customer.Email != "" {
		verification.Customer = &provider.Customer{
			Email: result.Data.Customer.Email,
			Name:  result.Data.Customer.Name,
		}
	}
	// The v3 verify payload carries no settlement timestamp; created_at
	// is the charge creation time and the closest field Flutterwave
	// exposes, so it stands in for paid-at on successful transactions.
	if strings.EqualFold(result.Data.Status, "successful") && result.Data.CreatedAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, result.Data.CreatedAt); err == nil {
			verification.PaidAt = &paidAt
		}
	}
	return verification, nil
}

// ValidateWebhook compares the verif-hash header against the configured
// webhook secret in constant time
func (p *FlutterwaveProvider) ValidateWebhook(headers map[string]string, _ []byte) bool {
	if p.webhookSecret == "" {
		return false
	}
	signature := provider.HeaderValue(headers, signatureHeader)
	if signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(p.webhookSecret)) == 1
}

// HealthCheck probes the transactions listing with a minimal page
func (p *FlutterwaveProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:      "GET",
		Endpoint:    "/transactions",
		QueryParams: map[string]string{"page": "1"},
	})
	return err == nil
}

// GetSupportedCurrencies lists ISO currency codes Flutterwave accepts
func (p *FlutterwaveProvider) GetSupportedCurrencies() []string {
	out := make([]string, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// IsCurrencySupported reports whether Flutterwave accepts a currency
func (p *FlutterwaveProvider) IsCurrencySupported(currency string) bool {
	currency = strings.ToUpper(currency)
	for _, c := range supportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// ExtractWebhookReference pulls data.tx_ref from a webhook payload
func (p *FlutterwaveProvider) ExtractWebhookReference(payload map[string]any) (string, bool) {
	if data, ok := payload["data"].(map[string]any); ok {
		if reference, ok := data["tx_ref"].(string); ok && reference != "" {
			return reference, true
		}
	}
	// v2-style charge events carry txRef at the top level
	if reference, ok := payload["txRef"].(string); ok && reference != "" {
		return reference, true
	}
	return "", false
}

// ExtractWebhookStatus pulls data.status from a webhook payload
func (p *FlutterwaveProvider) ExtractWebhookStatus(payload map[string]any) string {
	if data, ok := payload["data"].(map[string]any); ok {
		if status, ok := data["status"].(string); ok {
			return status
		}
	}
	if status, ok := payload["status"].(string); ok {
		return status
	}
	return ""
}

// ExtractWebhookChannel pulls data.payment_type from a webhook payload
func (p *FlutterwaveProvider) ExtractWebhookChannel(payload map[string]any) (string, bool) {
	if data, ok := payload["data"].(map[string]any); ok {
		if channel, ok := data["payment_type"].(string); ok && channel != "" {
			return channel, true
		}
	}
	return "", false
}

// ResolveVerificationID returns the reference: Flutterwave verifies by tx_ref
func (p *FlutterwaveProvider) ResolveVerificationID(reference, _ string) string {
	return reference
}

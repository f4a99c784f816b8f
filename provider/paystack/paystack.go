package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paybridge/paybridge/provider"
)

const (
	apiBaseURL = "https://api.paystack.co"

	endpointInitialize = "/transaction/initialize"
	endpointVerify     = "/transaction/verify/%s"
	endpointBanks      = "/bank"

	signatureHeader = "x-paystack-signature"
)

var supportedCurrencies = []string{"NGN", "USD", "GHS", "ZAR", "KES", "XOF", "EGP"}

// PaystackProvider implements the provider.PaymentProvider contract for
// Paystack
type PaystackProvider struct {
	secretKey string
	client    *provider.ProviderHTTPClient
	channels  *provider.ChannelMapper
}

// NewProvider creates a new Paystack driver
func NewProvider() provider.PaymentProvider {
	return &PaystackProvider{
		channels: provider.NewChannelMapper(),
	}
}

// Initialize sets up the driver with authentication credentials
func (p *PaystackProvider) Initialize(config map[string]string) error {
	p.secretKey = config["secretKey"]
	if p.secretKey == "" {
		return errors.New("paystack: secretKey is required")
	}

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
func (p *PaystackProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "secretKey",
			Required:    true,
			Type:        "string",
			Description: "Paystack secret key",
			Example:     "sk_test_4eC39HqLyjWDarjtT1zdp7dc",
			Pattern:     `^sk_`,
			MinLength:   10,
		},
	}
}

// ValidateConfig validates configuration against driver requirements
func (p *PaystackProvider) ValidateConfig(config map[string]string) error {
	return provider.ValidateConfigFields("paystack", config, p.GetRequiredConfig())
}

// Charge initializes a Paystack transaction and returns the checkout URL
func (p *PaystackProvider) Charge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	body := map[string]any{
		"email":     request.Email,
		"amount":    request.AmountMinor(),
		"currency":  strings.ToUpper(request.Currency),
		"reference": request.Reference,
	}
	if request.CallbackURL != "" {
		body["callback_url"] = request.CallbackURL
	}
	if channels := p.channels.MapChannels(request.Channels, "paystack"); channels != nil {
		body["channels"] = channels
	}
	if len(request.Metadata) > 0 {
		body["metadata"] = request.Metadata
	}

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpointInitialize,
		Body:     body,
	})
	if err != nil {
		return nil, fmt.Errorf("paystack: charge request failed: %w", err)
	}

	var result struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("paystack: failed to parse charge response: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack: charge rejected: %s", result.Message)
	}

	return &provider.ChargeResponse{
		Reference:        result.Data.Reference,
		AuthorizationURL: result.Data.AuthorizationURL,
		AccessCode:       result.Data.AccessCode,
		Status:           "pending",
		Provider:         "paystack",
	}, nil
}

// Verify retrieves the settled state of a transaction by reference
func (p *PaystackProvider) Verify(ctx context.Context, verificationID string) (*provider.VerificationResponse, error) {
	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "GET",
		Endpoint: fmt.Sprintf(endpointVerify, verificationID),
	})
	if err != nil {
		return nil, fmt.Errorf("paystack: verify request failed: %w", err)
	}

	var result struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status        string  `json:"status"`
			Reference     string  `json:"reference"`
			Amount        float64 `json:"amount"`
			Currency      string  `json:"currency"`
			PaidAt        string  `json:"paid_at"`
			Channel       string  `json:"channel"`
			Authorization struct {
				CardType string `json:"card_type"`
				Bank     string `json:"bank"`
			} `json:"authorization"`
			Customer struct {
				Email     string `json:"email"`
				FirstName string `json:"first_name"`
				LastName  string `json:"last_name"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("paystack: failed to parse verify response: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack: verification rejected: %s", result.Message)
	}

	verification := &provider.VerificationResponse{
		Reference: result.Data.Reference,
		Status:    result.Data.Status,
		Amount:    result.Data.Amount / 100, // Paystack reports minor units
		Currency:  strings.ToUpper(result.Data.Currency),
		Channel:   result.Data.Channel,
		CardType:  strings.TrimSpace(result.Data.Authorization.CardType),
		Bank:      result.Data.Authorization.Bank,
		Provider:  "paystack",
	}
	if result.Data.Customer.Email != "" {
		verification.Customer = &provider.Customer{
			Email:   result.Data.Customer.Email,
			Name:    result.Data.Customer.FirstName,
			Surname: result.Data.Customer.LastName,
		}
	}
	if result.Data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, result.Data.PaidAt); err == nil {
			verification.PaidAt = &paidAt
		}
	}
	return verification, nil
}

// ValidateWebhook checks the x-paystack-signature header: HMAC-SHA512 of
// the raw body under the secret key
func (p *PaystackProvider) ValidateWebhook(headers map[string]string, rawBody []byte) bool {
	signature := provider.HeaderValue(headers, signatureHeader)
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// HealthCheck probes the bank list endpoint
func (p *PaystackProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:      "GET",
		Endpoint:    endpointBanks,
		QueryParams: map[string]string{"perPage": "1"},
	})
	return err == nil
}

// GetSupportedCurrencies lists ISO currency codes Paystack accepts
func (p *PaystackProvider) GetSupportedCurrencies() []string {
	out := make([]string, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// IsCurrencySupported reports whether Paystack accepts a currency
func (p *PaystackProvider) IsCurrencySupported(currency string) bool {
	currency = strings.ToUpper(currency)
	for _, c := range supportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// ExtractWebhookReference pulls data.reference from a webhook payload
func (p *PaystackProvider) ExtractWebhookReference(payload map[string]any) (string, bool) {
	if data, ok := payload["data"].(map[string]any); ok {
		if reference, ok := data["reference"].(string); ok && reference != "" {
			return reference, true
		}
	}
	return "", false
}

// ExtractWebhookStatus pulls data.status from a webhook payload
func (p *PaystackProvider) ExtractWebhookStatus(payload map[string]any) string {
	if data, ok := payload["data"].(map[string]any); ok {
		if status, ok := data["status"].(string); ok {
			return status
		}
	}
	// charge.success events imply the status even without a data.status
	if event, ok := payload["event"].(string); ok && strings.HasSuffix(event, ".success") {
		return "success"
	}
	return ""
}

// ExtractWebhookChannel pulls data.channel from a webhook payload
func (p *PaystackProvider) ExtractWebhookChannel(payload map[string]any) (string, bool) {
	if data, ok := payload["data"].(map[string]any); ok {
		if channel, ok := data["channel"].(string); ok && channel != "" {
			return channel, true
		}
	}
	return "", false
}

// ResolveVerificationID returns the reference: Paystack verifies by the
// caller-visible reference directly
func (p *PaystackProvider) ResolveVerificationID(reference, _ string) string {
	return reference
}

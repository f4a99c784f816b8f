package monnify

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/paybridge/paybridge/provider"
)

const (
	apiBaseURL = "https://api.monnify.com"

	endpointLogin  = "/api/v1/auth/login"
	endpointCharge = "/api/v1/merchant/transactions/init-transaction"
	endpointVerify = "/api/v2/transactions/%s"

	signatureHeader = "monnify-signature"

	// tokens are valid for an hour; refresh a little early
	tokenLifetime = 50 * time.Minute
)

var supportedCurrencies = []string{"NGN"}

// MonnifyProvider implements the provider.PaymentProvider contract for
// Monnify. API calls authenticate with a short-lived bearer token obtained
// from the login endpoint with basic credentials
type MonnifyProvider struct {
	apiKey       string
	secretKey    string
	contractCode string
	client       *provider.ProviderHTTPClient
	channels     *provider.ChannelMapper

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewProvider creates a new Monnify driver
func NewProvider() provider.PaymentProvider {
	return &MonnifyProvider{
		channels: provider.NewChannelMapper(),
	}
}

// Initialize sets up the driver with authentication credentials
func (p *MonnifyProvider) Initialize(config map[string]string) error {
	p.apiKey = config["apiKey"]
	p.secretKey = config["secretKey"]
	p.contractCode = config["contractCode"]
	if p.apiKey == "" || p.secretKey == "" || p.contractCode == "" {
		return errors.New("monnify: apiKey, secretKey and contractCode are required")
	}

	baseURL := config["baseURL"]
	if baseURL == "" {
		baseURL = apiBaseURL
	}
	p.client = provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(baseURL, provider.DefaultRequestTimeout))
	return nil
}

// GetRequiredConfig returns the configuration fields this driver requires
func (p *MonnifyProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "apiKey",
			Required:    true,
			Type:        "string",
			Description: "Monnify API key",
			Example:     "MK_TEST_SAF7HR5F3F",
			MinLength:   5,
		},
		{
			Key:         "secretKey",
			Required:    true,
			Type:        "string",
			Description: "Monnify secret key",
			MinLength:   5,
		},
		{
			Key:         "contractCode",
			Required:    true,
			Type:        "string",
			Description: "Monnify contract code",
			Example:     "4934121693",
			MinLength:   5,
		},
	}
}

// ValidateConfig validates configuration against driver requirements
func (p *MonnifyProvider) ValidateConfig(config map[string]string) error {
	return provider.ValidateConfigFields("monnify", config, p.GetRequiredConfig())
}

// login exchanges the basic credentials for a bearer token, caching it
// until shortly before expiry
func (p *MonnifyProvider) login(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(p.apiKey + ":" + p.secretKey))
	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpointLogin,
		Headers:  map[string]string{"Authorization": "Basic " + basic},
	})
	if err != nil {
		return "", fmt.Errorf("monnify: login failed: %w", err)
	}

	var result struct {
		RequestSuccessful bool   `json:"requestSuccessful"`
		ResponseMessage   string `json:"responseMessage"`
		ResponseBody      struct {
			AccessToken string `json:"accessToken"`
		} `json:"responseBody"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return "", fmt.Errorf("monnify: failed to parse login response: %w", err)
	}
	if !result.RequestSuccessful || result.ResponseBody.AccessToken == "" {
		return "", fmt.Errorf("monnify: login rejected: %s", result.ResponseMessage)
	}

	p.accessToken = result.ResponseBody.AccessToken
	p.tokenExpiry = time.Now().Add(tokenLifetime)
	return p.accessToken, nil
}

// Charge initializes a Monnify transaction and returns its checkout URL.
// The transactionReference Monnify assigns is kept as the access code so
// verification can use it later
func (p *MonnifyProvider) Charge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	token, err := p.login(ctx)
	if err != nil {
		return nil, err
	}

	customerName := request.Email
	if request.Customer != nil {
		if name := strings.TrimSpace(request.Customer.Name + " " + request.Customer.Surname); name != "" {
			customerName = name
		}
	}

	body := map[string]any{
		"amount":             request.Amount,
		"customerName":       customerName,
		"customerEmail":      request.Email,
		"paymentReference":   request.Reference,
		"paymentDescription": request.Description,
		"currencyCode":       strings.ToUpper(request.Currency),
		"contractCode":       p.contractCode,
	}
	if request.CallbackURL != "" {
		body["redirectUrl"] = request.CallbackURL
	}
	if methods := p.channels.MapChannels(request.Channels, "monnify"); methods != nil {
		body["paymentMethods"] = methods
	}

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpointCharge,
		Headers:  map[string]string{"Authorization": "Bearer " + token},
		Body:     body,
	})
	if err != nil {
		return nil, fmt.Errorf("monnify: charge request failed: %w", err)
	}

	var result struct {
		RequestSuccessful bool   `json:"requestSuccessful"`
		ResponseMessage   string `json:"responseMessage"`
		ResponseBody      struct {
			TransactionReference string `json:"transactionReference"`
			CheckoutURL          string `json:"checkoutUrl"`
		} `json:"responseBody"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("monnify: failed to parse charge response: %w", err)
	}
	if !result.RequestSuccessful {
		return nil, fmt.Errorf("monnify: charge rejected: %s", result.ResponseMessage)
	}

	return &provider.ChargeResponse{
		Reference:        request.Reference,
		AuthorizationURL: result.ResponseBody.CheckoutURL,
		AccessCode:       result.ResponseBody.TransactionReference,
		Status:           "pending",
		Provider:         "monnify",
	}, nil
}

// Verify retrieves the settled state of a transaction by Monnify's
// transactionReference
func (p *MonnifyProvider) Verify(ctx context.Context, verificationID string) (*provider.VerificationResponse, error) {
	token, err := p.login(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "GET",
		Endpoint: fmt.Sprintf(endpointVerify, url.PathEscape(verificationID)),
		Headers:  map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, fmt.Errorf("monnify: verify request failed: %w", err)
	}

	var result struct {
		RequestSuccessful bool   `json:"requestSuccessful"`
		ResponseMessage   string `json:"responseMessage"`
		ResponseBody      struct {
			PaymentReference string  `json:"paymentReference"`
			PaymentStatus    string  `json:"paymentStatus"`
			AmountPaid       float64 `json:"amountPaid"`
			Amount           float64 `json:"amount"`
			CurrencyCode     string  `json:"currencyCode"`
			CompletedOn      string  `json:"completedOn"`
			PaymentMethod    string  `json:"paymentMethod"`
			CustomerDTO      struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"customerDTO"`
		} `json:"responseBody"`
	}
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("monnify: failed to parse verify response: %w", err)
	}
	if !result.RequestSuccessful {
		return nil, fmt.Errorf("monnify: verification rejected: %s", result.ResponseMessage)
	}

	amount := result.ResponseBody.AmountPaid
	if amount == 0 {
		amount = result.ResponseBody.Amount
	}
	verification := &provider.VerificationResponse{
		Reference: result.ResponseBody.PaymentReference,
		Status:    result.ResponseBody.PaymentStatus,
		Amount:    amount,
		Currency:  strings.ToUpper(result.ResponseBody.CurrencyCode),
		Channel:   result.ResponseBody.PaymentMethod,
		Provider:  "monnify",
	}
	if result.ResponseBody.CustomerDTO.Email != "" {
		verification.Customer = &provider.Customer{
			Email: result.ResponseBody.CustomerDTO.Email,
			Name:  result.ResponseBody.CustomerDTO.Name,
		}
	}
	if result.ResponseBody.CompletedOn != "" {
		if paidAt, err := time.Parse(time.RFC3339, result.ResponseBody.CompletedOn); err == nil {
			verification.PaidAt = &paidAt
		}
	}
	return verification, nil
}

// ValidateWebhook checks the monnify-signature header: HMAC-SHA512 of the
// raw body under the secret key
func (p *MonnifyProvider) ValidateWebhook(headers map[string]string, rawBody []byte) bool {
	signature := provider.HeaderValue(headers, signatureHeader)
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// HealthCheck probes the login endpoint
func (p *MonnifyProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.login(ctx)
	return err == nil
}

// GetSupportedCurrencies lists ISO currency codes Monnify accepts
func (p *MonnifyProvider) GetSupportedCurrencies() []string {
	out := make([]string, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// IsCurrencySupported reports whether Monnify accepts a currency
func (p *MonnifyProvider) IsCurrencySupported(currency string) bool {
	return strings.ToUpper(currency) == "NGN"
}

// ExtractWebhookReference pulls eventData.paymentReference from a payload
func (p *MonnifyProvider) ExtractWebhookReference(payload map[string]any) (string, bool) {
	if eventData, ok := payload["eventData"].(map[string]any); ok {
		if reference, ok := eventData["paymentReference"].(string); ok && reference != "" {
			return reference, true
		}
	}
	// legacy webhook shape without an event envelope
	if reference, ok := payload["paymentReference"].(string); ok && reference != "" {
		return reference, true
	}
	return "", false
}

// ExtractWebhookStatus pulls eventData.paymentStatus from a payload
func (p *MonnifyProvider) ExtractWebhookStatus(payload map[string]any) string {
	if eventData, ok := payload["eventData"].(map[string]any); ok {
		if status, ok := eventData["paymentStatus"].(string); ok {
			return status
		}
	}
	if status, ok := payload["paymentStatus"].(string); ok {
		return status
	}
	return ""
}

// ExtractWebhookChannel pulls eventData.paymentMethod from a payload
func (p *MonnifyProvider) ExtractWebhookChannel(payload map[string]any) (string, bool) {
	if eventData, ok := payload["eventData"].(map[string]any); ok {
		if channel, ok := eventData["paymentMethod"].(string); ok && channel != "" {
			return channel, true
		}
	}
	return "", false
}

// ResolveVerificationID prefers the stored transactionReference, falling
// back to the payment reference when no internal identifier was kept
func (p *MonnifyProvider) ResolveVerificationID(reference, internalID string) string {
	if internalID != "" {
		return internalID
	}
	return reference
}

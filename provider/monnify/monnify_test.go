package monnify

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/provider"
)

const (
	testAPIKey       = "MK_TEST_SAF7HR5F3F"
	testSecretKey    = "monnify-secret-key"
	testContractCode = "4934121693"
)

func testConfig(baseURL string) map[string]string {
	cfg := map[string]string{
		"apiKey":       testAPIKey,
		"secretKey":    testSecretKey,
		"contractCode": testContractCode,
	}
	if baseURL != "" {
		cfg["baseURL"] = baseURL
	}
	return cfg
}

func newTestProvider(t *testing.T, handler http.Handler) (*MonnifyProvider, *atomic.Int32) {
	t.Helper()

	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte(testAPIKey+":"+testSecretKey))
		require.Equal(t, expected, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"requestSuccessful": true,
			"responseBody":      map[string]any{"accessToken": "token-123"},
		})
	})
	mux.Handle("/", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewProvider().(*MonnifyProvider)
	require.NoError(t, p.Initialize(testConfig(srv.URL)))
	return p, &logins
}

func TestInitializeRequiresAllCredentials(t *testing.T) {
	p := NewProvider().(*MonnifyProvider)
	assert.Error(t, p.Initialize(map[string]string{"apiKey": testAPIKey}))
	assert.NoError(t, p.Initialize(testConfig("")))
}

func TestCharge(t *testing.T) {
	var gotBody map[string]any
	p, logins := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/merchant/transactions/init-transaction", r.URL.Path)
		require.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"requestSuccessful": true,
			"responseBody": map[string]any{
				"transactionReference": "MNFY|001",
				"checkoutUrl":          "https://sandbox.sdk.monnify.com/checkout/MNFY|001",
			},
		})
	}))

	resp, err := p.Charge(context.Background(), provider.ChargeRequest{
		Reference: "MON_ref1",
		Amount:    500,
		Currency:  "NGN",
		Email:     "customer@example.com",
		Channels:  []provider.PaymentChannel{provider.ChannelCard, provider.ChannelBankTransfer},
	})
	require.NoError(t, err)

	assert.Equal(t, "MON_ref1", resp.Reference)
	// Monnify's own transactionReference is kept for later verification
	assert.Equal(t, "MNFY|001", resp.AccessCode)
	assert.Equal(t, "monnify", resp.Provider)
	assert.EqualValues(t, 1, logins.Load())

	assert.Equal(t, "MON_ref1", gotBody["paymentReference"])
	assert.Equal(t, testContractCode, gotBody["contractCode"])
	assert.Equal(t, []any{"CARD", "ACCOUNT_TRANSFER"}, gotBody["paymentMethods"])
}

func TestLoginTokenReused(t *testing.T) {
	p, logins := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"requestSuccessful": true,
			"responseBody": map[string]any{
				"transactionReference": "MNFY|002",
				"checkoutUrl":          "https://example.com/checkout",
			},
		})
	}))

	req := provider.ChargeRequest{Reference: "MON_ref2", Amount: 100, Currency: "NGN", Email: "a@b.com"}
	_, err := p.Charge(context.Background(), req)
	require.NoError(t, err)
	_, err = p.Charge(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 1, logins.Load())
}

func TestVerify(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the transactionReference is path-escaped; | becomes %7C
		require.Equal(t, "/api/v2/transactions/MNFY%7C003", r.URL.EscapedPath())

		json.NewEncoder(w).Encode(map[string]any{
			"requestSuccessful": true,
			"responseBody": map[string]any{
				"paymentReference": "MON_ref3",
				"paymentStatus":    "PAID",
				"amountPaid":       500.0,
				"currencyCode":     "NGN",
				"completedOn":      "2026-03-01T15:00:00Z",
				"paymentMethod":    "ACCOUNT_TRANSFER",
				"customerDTO": map[string]any{
					"email": "customer@example.com",
					"name":  "Ada",
				},
			},
		})
	}))

	v, err := p.Verify(context.Background(), "MNFY|003")
	require.NoError(t, err)

	assert.Equal(t, "MON_ref3", v.Reference)
	assert.Equal(t, "PAID", v.Status)
	assert.InDelta(t, 500, v.Amount, 1e-9)
	assert.Equal(t, "ACCOUNT_TRANSFER", v.Channel)
	require.NotNil(t, v.PaidAt)
	require.NotNil(t, v.Customer)
	assert.Equal(t, "Ada", v.Customer.Name)
}

func TestValidateWebhook(t *testing.T) {
	p := NewProvider().(*MonnifyProvider)
	require.NoError(t, p.Initialize(testConfig("")))

	body := []byte(`{"eventType":"SUCCESSFUL_TRANSACTION","eventData":{"paymentReference":"MON_ref4"}}`)
	mac := hmac.New(sha512.New, []byte(testSecretKey))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, p.ValidateWebhook(map[string]string{"monnify-signature": signature}, body))
	assert.True(t, p.ValidateWebhook(map[string]string{"Monnify-Signature": signature}, body))
	assert.False(t, p.ValidateWebhook(map[string]string{"monnify-signature": signature}, []byte(`{"tampered":true}`)))
	assert.False(t, p.ValidateWebhook(map[string]string{}, body))
}

func TestWebhookExtraction(t *testing.T) {
	p := NewProvider().(*MonnifyProvider)

	payload := map[string]any{
		"eventType": "SUCCESSFUL_TRANSACTION",
		"eventData": map[string]any{
			"paymentReference": "MON_ref5",
			"paymentStatus":    "PAID",
			"paymentMethod":    "CARD",
		},
	}

	ref, ok := p.ExtractWebhookReference(payload)
	assert.True(t, ok)
	assert.Equal(t, "MON_ref5", ref)
	assert.Equal(t, "PAID", p.ExtractWebhookStatus(payload))

	channel, ok := p.ExtractWebhookChannel(payload)
	assert.True(t, ok)
	assert.Equal(t, "CARD", channel)
}

func TestWebhookExtractionLegacyShape(t *testing.T) {
	p := NewProvider().(*MonnifyProvider)

	payload := map[string]any{
		"paymentReference": "MON_ref6",
		"paymentStatus":    "PAID",
	}

	ref, ok := p.ExtractWebhookReference(payload)
	assert.True(t, ok)
	assert.Equal(t, "MON_ref6", ref)
	assert.Equal(t, "PAID", p.ExtractWebhookStatus(payload))
}

func TestResolveVerificationID(t *testing.T) {
	p := NewProvider().(*MonnifyProvider)

	// prefer the stored transactionReference when one exists
	assert.Equal(t, "MNFY|007", p.ResolveVerificationID("MON_ref7", "MNFY|007"))
	assert.Equal(t, "MON_ref7", p.ResolveVerificationID("MON_ref7", ""))
}

func TestCurrencySupport(t *testing.T) {
	p := NewProvider().(*MonnifyProvider)

	assert.True(t, p.IsCurrencySupported("ngn"))
	assert.False(t, p.IsCurrencySupported("USD"))
	assert.Equal(t, []string{"NGN"}, p.GetSupportedCurrencies())
}

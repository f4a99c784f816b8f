package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/provider"
)

const testSecretKey = "sk_test_4eC39HqLyjWDarjtT1zdp7dc"

func newTestProvider(t *testing.T, handler http.Handler) *PaystackProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewProvider().(*PaystackProvider)
	require.NoError(t, p.Initialize(map[string]string{
		"secretKey": testSecretKey,
		"baseURL":   srv.URL,
	}))
	return p
}

func TestInitialize(t *testing.T) {
	p := NewProvider().(*PaystackProvider)
	assert.Error(t, p.Initialize(map[string]string{}))
	assert.NoError(t, p.Initialize(map[string]string{"secretKey": testSecretKey}))
}

func TestValidateConfig(t *testing.T) {
	p := NewProvider().(*PaystackProvider)

	assert.Error(t, p.ValidateConfig(map[string]string{}))
	assert.Error(t, p.ValidateConfig(map[string]string{"secretKey": "pk_wrong_prefix"}))
	assert.NoError(t, p.ValidateConfig(map[string]string{"secretKey": testSecretKey}))
}

func TestCharge(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer "+testSecretKey, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "PAYSTACK_ref1",
			},
		})
	}))

	resp, err := p.Charge(context.Background(), provider.ChargeRequest{
		Reference:   "PAYSTACK_ref1",
		Amount:      150.25,
		Currency:    "ngn",
		Email:       "customer@example.com",
		CallbackURL: "https://merchant.example.com/return",
		Channels:    []provider.PaymentChannel{provider.ChannelCard, provider.ChannelUSSD},
	})
	require.NoError(t, err)

	assert.Equal(t, "PAYSTACK_ref1", resp.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc123", resp.AuthorizationURL)
	assert.Equal(t, "abc123", resp.AccessCode)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "paystack", resp.Provider)

	// amount goes over the wire in minor units, currency upper-cased
	assert.EqualValues(t, 15025, gotBody["amount"])
	assert.Equal(t, "NGN", gotBody["currency"])
	assert.Equal(t, "https://merchant.example.com/return", gotBody["callback_url"])
	assert.Equal(t, []any{"card", "ussd"}, gotBody["channels"])
}

func TestChargeRejected(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid key",
		})
	}))

	_, err := p.Charge(context.Background(), provider.ChargeRequest{
		Reference: "PAYSTACK_ref2",
		Amount:    10,
		Currency:  "NGN",
		Email:     "a@b.com",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestVerify(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/PAYSTACK_ref3", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status":    "success",
				"reference": "PAYSTACK_ref3",
				"amount":    15025,
				"currency":  "NGN",
				"paid_at":   "2026-03-01T12:30:00Z",
				"channel":   "card",
				"authorization": map[string]any{
					"card_type": "visa ",
					"bank":      "Test Bank",
				},
				"customer": map[string]any{
					"email":      "customer@example.com",
					"first_name": "Ada",
					"last_name":  "Lovelace",
				},
			},
		})
	}))

	v, err := p.Verify(context.Background(), "PAYSTACK_ref3")
	require.NoError(t, err)

	assert.Equal(t, "PAYSTACK_ref3", v.Reference)
	assert.Equal(t, "success", v.Status)
	assert.InDelta(t, 150.25, v.Amount, 1e-9) // minor units converted back
	assert.Equal(t, "NGN", v.Currency)
	assert.Equal(t, "card", v.Channel)
	assert.Equal(t, "visa", v.CardType)
	assert.Equal(t, "Test Bank", v.Bank)
	require.NotNil(t, v.PaidAt)
	assert.Equal(t, 2026, v.PaidAt.Year())
	require.NotNil(t, v.Customer)
	assert.Equal(t, "Ada", v.Customer.Name)
}

func TestValidateWebhook(t *testing.T) {
	p := NewProvider().(*PaystackProvider)
	require.NoError(t, p.Initialize(map[string]string{"secretKey": testSecretKey}))

	body := []byte(`{"event":"charge.success","data":{"reference":"PAYSTACK_ref4","status":"success"}}`)
	mac := hmac.New(sha512.New, []byte(testSecretKey))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	t.Run("valid_signature", func(t *testing.T) {
		assert.True(t, p.ValidateWebhook(map[string]string{"x-paystack-signature": signature}, body))
	})

	t.Run("header_lookup_is_case_insensitive", func(t *testing.T) {
		assert.True(t, p.ValidateWebhook(map[string]string{"X-Paystack-Signature": signature}, body))
	})

	t.Run("tampered_body", func(t *testing.T) {
		tampered := []byte(`{"event":"charge.success","data":{"reference":"PAYSTACK_ref4","status":"failed"}}`)
		assert.False(t, p.ValidateWebhook(map[string]string{"x-paystack-signature": signature}, tampered))
	})

	t.Run("missing_header", func(t *testing.T) {
		assert.False(t, p.ValidateWebhook(map[string]string{}, body))
	})

	t.Run("garbage_signature", func(t *testing.T) {
		assert.False(t, p.ValidateWebhook(map[string]string{"x-paystack-signature": "deadbeef"}, body))
	})
}

func TestWebhookExtraction(t *testing.T) {
	p := NewProvider().(*PaystackProvider)

	payload := map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": "PAYSTACK_ref5",
			"status":    "success",
			"channel":   "ussd",
		},
	}

	ref, ok := p.ExtractWebhookReference(payload)
	assert.True(t, ok)
	assert.Equal(t, "PAYSTACK_ref5", ref)

	assert.Equal(t, "success", p.ExtractWebhookStatus(payload))

	channel, ok := p.ExtractWebhookChannel(payload)
	assert.True(t, ok)
	assert.Equal(t, "ussd", channel)

	_, ok = p.ExtractWebhookReference(map[string]any{"event": "ping"})
	assert.False(t, ok)
}

func TestWebhookStatusFromEventName(t *testing.T) {
	p := NewProvider().(*PaystackProvider)

	payload := map[string]any{
		"event": "charge.success",
		"data":  map[string]any{"reference": "PAYSTACK_ref6"},
	}
	assert.Equal(t, "success", p.ExtractWebhookStatus(payload))
}

func TestCurrencySupport(t *testing.T) {
	p := NewProvider().(*PaystackProvider)

	assert.True(t, p.IsCurrencySupported("NGN"))
	assert.True(t, p.IsCurrencySupported("usd"))
	assert.False(t, p.IsCurrencySupported("JPY"))
	assert.Contains(t, p.GetSupportedCurrencies(), "GHS")
}

func TestResolveVerificationID(t *testing.T) {
	p := NewProvider().(*PaystackProvider)
	// Paystack verifies by the caller-visible reference even when an
	// internal ID was stored
	assert.Equal(t, "PAYSTACK_ref7", p.ResolveVerificationID("PAYSTACK_ref7", "access-code"))
}

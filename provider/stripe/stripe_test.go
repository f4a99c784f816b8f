package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "sk_test_4eC39HqLyjWDarjtT1zdp7dc"

func TestInitialize(t *testing.T) {
	p := NewProvider().(*StripeProvider)
	assert.Error(t, p.Initialize(map[string]string{}))
	require.NoError(t, p.Initialize(map[string]string{"secretKey": testSecretKey}))
	assert.NotNil(t, p.api)
}

func TestValidateConfig(t *testing.T) {
	p := NewProvider().(*StripeProvider)

	assert.Error(t, p.ValidateConfig(map[string]string{}))
	assert.Error(t, p.ValidateConfig(map[string]string{"secretKey": "whsec_wrong_kind"}))
	assert.NoError(t, p.ValidateConfig(map[string]string{"secretKey": testSecretKey}))
	assert.Error(t, p.ValidateConfig(map[string]string{
		"secretKey":     testSecretKey,
		"webhookSecret": "not-a-webhook-secret",
	}))
	assert.NoError(t, p.ValidateConfig(map[string]string{
		"secretKey":     testSecretKey,
		"webhookSecret": "whsec_cd39cba140112a8b6b2b00a975da148b",
	}))
}

func TestValidateWebhookWithoutSecret(t *testing.T) {
	p := NewProvider().(*StripeProvider)
	require.NoError(t, p.Initialize(map[string]string{"secretKey": testSecretKey}))

	// without a signing secret no webhook can be trusted
	assert.False(t, p.ValidateWebhook(map[string]string{"Stripe-Signature": "t=1,v1=abc"}, []byte("{}")))
}

func TestVerifyRejectsUnknownIdentifier(t *testing.T) {
	p := NewProvider().(*StripeProvider)
	require.NoError(t, p.Initialize(map[string]string{"secretKey": testSecretKey}))

	_, err := p.Verify(context.Background(), "PAYBRIDGE_plainreference")
	assert.Error(t, err)
}

func TestWebhookExtraction(t *testing.T) {
	p := NewProvider().(*StripeProvider)

	payload := map[string]any{
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":                   "cs_test_123",
				"client_reference_id":  "STRIPE_ref1",
				"payment_status":       "paid",
				"payment_method_types": []any{"card"},
			},
		},
	}

	ref, ok := p.ExtractWebhookReference(payload)
	assert.True(t, ok)
	assert.Equal(t, "STRIPE_ref1", ref)
	assert.Equal(t, "paid", p.ExtractWebhookStatus(payload))

	channel, ok := p.ExtractWebhookChannel(payload)
	assert.True(t, ok)
	assert.Equal(t, "card", channel)
}

func TestWebhookExtractionFromIntentMetadata(t *testing.T) {
	p := NewProvider().(*StripeProvider)

	payload := map[string]any{
		"type": "payment_intent.succeeded",
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_test_456",
				"status":   "succeeded",
				"metadata": map[string]any{"reference": "STRIPE_ref2"},
			},
		},
	}

	ref, ok := p.ExtractWebhookReference(payload)
	assert.True(t, ok)
	assert.Equal(t, "STRIPE_ref2", ref)
	assert.Equal(t, "succeeded", p.ExtractWebhookStatus(payload))
}

func TestWebhookExtractionMissingObject(t *testing.T) {
	p := NewProvider().(*StripeProvider)

	_, ok := p.ExtractWebhookReference(map[string]any{"type": "ping"})
	assert.False(t, ok)
	assert.Empty(t, p.ExtractWebhookStatus(map[string]any{"type": "ping"}))
}

func TestResolveVerificationID(t *testing.T) {
	p := NewProvider().(*StripeProvider)

	// the stored session ID wins over the external reference
	assert.Equal(t, "cs_test_789", p.ResolveVerificationID("STRIPE_ref3", "cs_test_789"))
	assert.Equal(t, "STRIPE_ref3", p.ResolveVerificationID("STRIPE_ref3", ""))
}

func TestCurrencySupport(t *testing.T) {
	p := NewProvider().(*StripeProvider)

	assert.True(t, p.IsCurrencySupported("usd"))
	assert.True(t, p.IsCurrencySupported("EUR"))
	assert.False(t, p.IsCurrencySupported("XOF"))
}

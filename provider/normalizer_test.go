package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	n := NewStatusNormalizer()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "success_lower", raw: "success", want: "success"},
		{name: "successful", raw: "SUCCESSFUL", want: "success"},
		{name: "succeeded", raw: "succeeded", want: "success"},
		{name: "paid", raw: "PAID", want: "success"},
		{name: "captured_mixed_case", raw: "Captured", want: "success"},
		{name: "overpaid", raw: "OVERPAID", want: "success"},
		{name: "failed", raw: "failed", want: "failed"},
		{name: "declined", raw: "DECLINED", want: "failed"},
		{name: "cancelled_both_spellings", raw: "CANCELED", want: "failed"},
		{name: "abandoned", raw: "abandoned", want: "failed"},
		{name: "pending", raw: "PENDING", want: "pending"},
		{name: "requires_action", raw: "requires_action", want: "pending"},
		{name: "awaiting_payment", raw: "AWAITING_PAYMENT", want: "pending"},
		{name: "whitespace_trimmed", raw: "  paid  ", want: "success"},
		{name: "unknown_passes_through_lowercased", raw: "PARTIALLY_REFUNDED", want: "partially_refunded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw, ""))
		})
	}
}

func TestNormalizeProviderOverride(t *testing.T) {
	n := NewStatusNormalizer()

	// a provider that reports APPROVED as a final success
	err := n.RegisterProviderMappings("acme", map[PaymentStatus][]string{
		StatusSuccess: {"APPROVED"},
	})
	require.NoError(t, err)

	assert.Equal(t, "success", n.Normalize("approved", "acme"))
	// other providers keep the default pending meaning
	assert.Equal(t, "pending", n.Normalize("approved", "paystack"))
	assert.Equal(t, "pending", n.Normalize("approved", ""))
}

func TestRegisterProviderMappingsRejectsConflicts(t *testing.T) {
	n := NewStatusNormalizer()

	err := n.RegisterProviderMappings("acme", map[PaymentStatus][]string{
		StatusSuccess: {"DONE"},
		StatusFailed:  {"done"},
	})
	require.Error(t, err)

	// the conflicting mapping must not have been applied
	assert.Equal(t, "done", n.Normalize("DONE", "acme"))
}

func TestRegisterProviderMappingsValidation(t *testing.T) {
	n := NewStatusNormalizer()

	assert.Error(t, n.RegisterProviderMappings("", map[PaymentStatus][]string{
		StatusSuccess: {"OK"},
	}))
	assert.Error(t, n.RegisterProviderMappings("acme", map[PaymentStatus][]string{
		PaymentStatus("refunded"): {"REFUNDED"},
	}))
}

func TestRegisterProviderMappingsMerges(t *testing.T) {
	n := NewStatusNormalizer()

	require.NoError(t, n.RegisterProviderMappings("acme", map[PaymentStatus][]string{
		StatusSuccess: {"OK"},
	}))
	require.NoError(t, n.RegisterProviderMappings("acme", map[PaymentStatus][]string{
		StatusFailed: {"KO"},
	}))

	assert.Equal(t, "success", n.Normalize("ok", "acme"))
	assert.Equal(t, "failed", n.Normalize("ko", "acme"))
}

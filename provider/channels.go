package provider

import (
	"sync"
)

// ChannelMapper translates unified payment channels into each provider's
// native channel vocabulary. Providers that take no channel parameter are
// simply not registered; mapping for them returns nil, never an empty
// slice, because some gateways read an empty list as "no channels
// allowed" rather than "any channel".
type ChannelMapper struct {
	mappings map[string]map[PaymentChannel]string
	defaults map[string][]string
	mu       sync.RWMutex
}

// NewChannelMapper creates a mapper seeded with the built-in provider
// vocabularies. Stripe is intentionally absent: Stripe Checkout selects
// payment methods itself.
func NewChannelMapper() *ChannelMapper {
	m := &ChannelMapper{
		mappings: make(map[string]map[PaymentChannel]string),
		defaults: make(map[string][]string),
	}

	m.RegisterProvider("paystack", map[PaymentChannel]string{
		ChannelCard:         "card",
		ChannelBankTransfer: "bank_transfer",
		ChannelUSSD:         "ussd",
		ChannelMobileMoney:  "mobile_money",
		ChannelQRCode:       "qr",
	}, []string{"card", "bank_transfer"})

	m.RegisterProvider("flutterwave", map[PaymentChannel]string{
		ChannelCard:         "card",
		ChannelBankTransfer: "banktransfer",
		ChannelUSSD:         "ussd",
		ChannelMobileMoney:  "mobilemoney",
		ChannelQRCode:       "qr",
	}, []string{"card"})

	m.RegisterProvider("monnify", map[PaymentChannel]string{
		ChannelCard:         "CARD",
		ChannelBankTransfer: "ACCOUNT_TRANSFER",
		ChannelUSSD:         "USSD",
	}, []string{"CARD", "ACCOUNT_TRANSFER"})

	return m
}

// RegisterProvider adds or replaces a provider's channel vocabulary
func (m *ChannelMapper) RegisterProvider(providerName string, mapping map[PaymentChannel]string, defaults []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[providerName] = mapping
	m.defaults[providerName] = defaults
}

// MapChannels maps unified channels to a provider's native names.
// Returns nil when the provider does not support channel selection, when
// the input is empty, or when none of the requested channels translate.
func (m *ChannelMapper) MapChannels(channels []PaymentChannel, providerName string) []string {
	if len(channels) == 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.mappings[providerName]
	if !ok {
		return nil
	}

	var native []string
	seen := make(map[string]bool)
	for _, ch := range channels {
		if name, ok := mapping[ch]; ok && !seen[name] {
			native = append(native, name)
			seen[name] = true
		}
	}
	return native
}

// GetDefaultChannels returns the provider's default native channels
func (m *ChannelMapper) GetDefaultChannels(providerName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defaults, ok := m.defaults[providerName]
	if !ok {
		return nil
	}
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

// SupportsChannels reports whether a provider accepts channel selection
func (m *ChannelMapper) SupportsChannels(providerName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.mappings[providerName]
	return ok
}

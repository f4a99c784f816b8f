package provider

import (
	"sort"
	"strings"
	"sync"
)

// ProviderDetector infers which provider issued a transaction reference
// from a registered prefix table. Longer prefixes are checked before
// shorter ones so "FLWSUB_" can coexist with "FLW_".
type ProviderDetector struct {
	prefixes []prefixEntry
	mu       sync.RWMutex
}

type prefixEntry struct {
	prefix   string
	provider string
}

// NewProviderDetector creates a detector seeded with the built-in
// reference prefixes
func NewProviderDetector() *ProviderDetector {
	d := &ProviderDetector{}
	for prefix, name := range map[string]string{
		"PAYSTACK_": "paystack",
		"STRIPE_":   "stripe",
		"FLW_":      "flutterwave",
		"MON_":      "monnify",
	} {
		d.RegisterPrefix(prefix, name)
	}
	return d
}

// RegisterPrefix registers a reference prefix for a provider at runtime
func (d *ProviderDetector) RegisterPrefix(prefix, providerName string) {
	if prefix == "" || providerName == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, entry := range d.prefixes {
		if entry.prefix == prefix {
			d.prefixes[i].provider = providerName
			return
		}
	}
	d.prefixes = append(d.prefixes, prefixEntry{prefix: prefix, provider: providerName})
	sort.SliceStable(d.prefixes, func(i, j int) bool {
		return len(d.prefixes[i].prefix) > len(d.prefixes[j].prefix)
	})
}

// DetectFromReference returns the provider that issued a reference, or
// false when no registered prefix matches. An unknown prefix is not an
// error: callers fall back to scanning enabled providers.
func (d *ProviderDetector) DetectFromReference(reference string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, entry := range d.prefixes {
		if strings.HasPrefix(reference, entry.prefix) {
			return entry.provider, true
		}
	}
	return "", false
}

// PrefixFor returns the longest registered prefix for a provider. Used
// when generating references so detection round-trips.
func (d *ProviderDetector) PrefixFor(providerName string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, entry := range d.prefixes {
		if entry.provider == providerName {
			return entry.prefix, true
		}
	}
	return "", false
}

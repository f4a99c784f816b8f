package provider

import (
	"fmt"
	"strings"
	"sync"
)

// StatusNormalizer maps raw provider status strings to the canonical
// three-state model. Lookup order is always provider-specific first,
// default second, case-insensitive on the raw input. An unrecognized
// status passes through lowercased: callers must treat it as neither
// success nor failure.
type StatusNormalizer struct {
	defaults  map[string]PaymentStatus
	overrides map[string]map[string]PaymentStatus
	mu        sync.RWMutex
}

// defaultStatusTable holds the provider-agnostic mapping. Kept as a table
// rather than conditionals: provider vocabularies grow.
var defaultStatusTable = map[PaymentStatus][]string{
	StatusSuccess: {
		"SUCCESS", "SUCCESSFUL", "SUCCEEDED", "COMPLETED", "COMPLETE",
		"PAID", "CAPTURED", "OVERPAID", "SETTLED",
	},
	StatusFailed: {
		"FAILED", "FAILURE", "REJECTED", "CANCELLED", "CANCELED",
		"DECLINED", "DENIED", "VOIDED", "EXPIRED", "REVERSED",
		"ABANDONED", "ERROR", "TIMEOUT",
	},
	StatusPending: {
		"PENDING", "PROCESSING", "CREATED", "APPROVED", "REQUIRES_ACTION",
		"INITIATED", "IN_PROGRESS", "ONGOING", "AWAITING_PAYMENT",
	},
}

// NewStatusNormalizer creates a normalizer seeded with the default table
func NewStatusNormalizer() *StatusNormalizer {
	n := &StatusNormalizer{
		defaults:  make(map[string]PaymentStatus),
		overrides: make(map[string]map[string]PaymentStatus),
	}
	for canonical, raws := range defaultStatusTable {
		for _, raw := range raws {
			n.defaults[raw] = canonical
		}
	}
	return n
}

// Normalize maps a raw provider status to "success", "failed" or
// "pending". Provider may be empty; then only the default table applies.
func (n *StatusNormalizer) Normalize(rawStatus, providerName string) string {
	raw := strings.ToUpper(strings.TrimSpace(rawStatus))

	n.mu.RLock()
	defer n.mu.RUnlock()

	if providerName != "" {
		if mapping, ok := n.overrides[providerName]; ok {
			if canonical, ok := mapping[raw]; ok {
				return string(canonical)
			}
		}
	}
	if canonical, ok := n.defaults[raw]; ok {
		return string(canonical)
	}
	return strings.ToLower(strings.TrimSpace(rawStatus))
}

// RegisterProviderMappings layers a provider-specific mapping over the
// defaults. A raw status claimed by two canonical buckets in the same
// mapping is a configuration error and rejects the whole mapping.
func (n *StatusNormalizer) RegisterProviderMappings(providerName string, mapping map[PaymentStatus][]string) error {
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	flat := make(map[string]PaymentStatus)
	for canonical, raws := range mapping {
		switch canonical {
		case StatusSuccess, StatusFailed, StatusPending:
		default:
			return fmt.Errorf("%s: unknown canonical status %q", providerName, canonical)
		}
		for _, raw := range raws {
			key := strings.ToUpper(strings.TrimSpace(raw))
			if existing, ok := flat[key]; ok && existing != canonical {
				return fmt.Errorf("%s: status %q mapped to both %q and %q", providerName, raw, existing, canonical)
			}
			flat[key] = canonical
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if existing, ok := n.overrides[providerName]; ok {
		for raw, canonical := range flat {
			existing[raw] = canonical
		}
	} else {
		n.overrides[providerName] = flat
	}
	return nil
}

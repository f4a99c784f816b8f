package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the dispatch engine
var (
	// ErrDriverNotFound means the provider name is unknown or disabled
	ErrDriverNotFound = errors.New("payment provider not found or disabled")

	// ErrWebhookSignatureInvalid means an inbound webhook failed signature verification
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")

	// ErrTransactionNotFound means no local transaction matches a reference
	ErrTransactionNotFound = errors.New("transaction not found")
)

// InvalidRequestError wraps a charge request validation failure.
// It is raised before any network call and is never retried.
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid charge request: %v", e.Err)
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// ProviderError is a single provider's charge or verification failure.
// Inside the fallback engine it is a chain-continuation signal, not a
// terminal error.
type ProviderError struct {
	Provider string
	Op       string // "charge", "verify" or "health"
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError is raised when the whole fallback chain is
// exhausted. Errors holds one entry per attempted provider.
type AllProvidersFailedError struct {
	Op     string
	Errors map[string]error
}

func (e *AllProvidersFailedError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Errors[name]))
	}
	return fmt.Sprintf("all providers failed for %s: [%s]", e.Op, strings.Join(parts, "; "))
}

// TransactionUpdateError means the provider-side operation succeeded but
// the local transaction update did not. The provider-side result is not
// rolled back; the queue layer may retry the update.
type TransactionUpdateError struct {
	Reference string
	Err       error
}

func (e *TransactionUpdateError) Error() string {
	return fmt.Sprintf("transaction update failed for %s: %v", e.Reference, e.Err)
}

func (e *TransactionUpdateError) Unwrap() error { return e.Err }

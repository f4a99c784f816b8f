package provider

import (
	"context"
	"time"
)

// TransactionStore persists payment attempts. Any keyed-row store works;
// UpdateLocked must hold a row-level write lock (or equivalent) for the
// whole read-then-update so a webhook delivery and a user-triggered
// verification racing on the same reference cannot interleave.
type TransactionStore interface {
	// FindByReference loads a transaction, ErrTransactionNotFound when absent
	FindByReference(ctx context.Context, reference string) (*Transaction, error)

	// CreateOrUpdate upserts a transaction keyed by reference
	CreateOrUpdate(ctx context.Context, tx *Transaction) error

	// UpdateLocked loads the transaction under a write lock, applies fn and
	// persists the result when fn reports a change. Returns
	// ErrTransactionNotFound when no row matches.
	UpdateLocked(ctx context.Context, reference string, fn func(tx *Transaction) (changed bool, err error)) error
}

// EventSink receives webhook notification events. The dispatch engine
// emits a generic and a provider-scoped event per processed webhook.
type EventSink interface {
	Dispatch(ctx context.Context, name, providerName, reference string, payload map[string]any)
}

// applyStatusUpdate mutates a transaction from a fresh provider-native
// status. It is idempotent: re-applying the same final state is a no-op,
// and a terminal success never regresses to pending.
func applyStatusUpdate(tx *Transaction, rawStatus string, normalizer *StatusNormalizer, paidAt *time.Time, channel string) bool {
	canonical := normalizer.Normalize(rawStatus, tx.Provider)
	current := normalizer.Normalize(tx.Status, tx.Provider)

	if current == string(StatusSuccess) && canonical != string(StatusSuccess) {
		return false
	}

	changed := false
	if tx.Status != canonical {
		tx.Status = canonical
		changed = true
	}
	if canonical == string(StatusSuccess) && tx.PaidAt == nil {
		when := time.Now().UTC()
		if paidAt != nil {
			when = *paidAt
		}
		tx.PaidAt = &when
		changed = true
	}
	if channel != "" && tx.Channel != channel {
		tx.Channel = channel
		changed = true
	}
	return changed
}

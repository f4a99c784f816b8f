package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/paybridge/paybridge/infra/logger"
)

// metadata key carrying the provider-internal ID captured at charge time
const metaProviderReference = "providerReference"

// ManagerOptions carries the collaborators a PaymentManager needs. Nil
// fields fall back to sensible defaults; Store and Events may stay nil,
// in which case persistence and event dispatch are skipped.
type ManagerOptions struct {
	Registry          *ProviderRegistry
	Normalizer        *StatusNormalizer
	Detector          *ProviderDetector
	Channels          *ChannelMapper
	Store             TransactionStore
	Health            HealthCache
	HealthTTL         time.Duration
	Events            EventSink
	DefaultProvider   string
	FallbackProviders []string
}

// PaymentManager orchestrates driver selection, fallback-chain traversal,
// health gating, transaction persistence and webhook-driven updates.
type PaymentManager struct {
	registry   *ProviderRegistry
	normalizer *StatusNormalizer
	detector   *ProviderDetector
	channels   *ChannelMapper
	store      TransactionStore
	health     HealthCache
	healthTTL  time.Duration
	events     EventSink

	mu              sync.RWMutex
	configs         map[string]map[string]string
	drivers         map[string]PaymentProvider
	breakers        map[string]*gobreaker.CircuitBreaker
	defaultProvider string
	fallbacks       []string
}

// NewPaymentManager creates a manager from explicit collaborators
func NewPaymentManager(opts ManagerOptions) *PaymentManager {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry
	}
	if opts.Normalizer == nil {
		opts.Normalizer = NewStatusNormalizer()
	}
	if opts.Detector == nil {
		opts.Detector = NewProviderDetector()
	}
	if opts.Channels == nil {
		opts.Channels = NewChannelMapper()
	}
	if opts.Health == nil {
		opts.Health = NewInMemoryHealthCache()
	}
	if opts.HealthTTL <= 0 {
		opts.HealthTTL = DefaultHealthTTL
	}

	return &PaymentManager{
		registry:        opts.Registry,
		normalizer:      opts.Normalizer,
		detector:        opts.Detector,
		channels:        opts.Channels,
		store:           opts.Store,
		health:          opts.Health,
		healthTTL:       opts.HealthTTL,
		events:          opts.Events,
		configs:         make(map[string]map[string]string),
		drivers:         make(map[string]PaymentProvider),
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
		defaultProvider: opts.DefaultProvider,
		fallbacks:       opts.FallbackProviders,
	}
}

// Normalizer returns the status normalizer shared with response helpers
func (m *PaymentManager) Normalizer() *StatusNormalizer { return m.normalizer }

// Detector returns the reference prefix detector
func (m *PaymentManager) Detector() *ProviderDetector { return m.detector }

// Channels returns the channel mapper drivers consult
func (m *PaymentManager) Channels() *ChannelMapper { return m.channels }

// AddProvider enables a provider with its configuration. The driver must
// be registered and the configuration must pass its field validation.
func (m *PaymentManager) AddProvider(name string, config map[string]string) error {
	factory, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if err := factory().ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration for provider '%s': %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = config
	delete(m.drivers, name) // force re-initialization on next use
	if m.defaultProvider == "" {
		m.defaultProvider = name
	}
	return nil
}

// RemoveProvider disables a provider
func (m *PaymentManager) RemoveProvider(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, name)
	delete(m.drivers, name)
}

// SetDefaultProvider sets the provider tried first by the fallback chain
func (m *PaymentManager) SetDefaultProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[name]; !ok {
		return fmt.Errorf("provider '%s': %w", name, ErrDriverNotFound)
	}
	m.defaultProvider = name
	return nil
}

// SetFallbackProviders sets the providers tried after the default
func (m *PaymentManager) SetFallbackProviders(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = names
}

// Driver resolves and caches the driver for a provider name. An empty
// name means the default provider.
func (m *PaymentManager) Driver(name string) (PaymentProvider, error) {
	m.mu.RLock()
	if name == "" {
		name = m.defaultProvider
	}
	config, enabled := m.configs[name]
	if driver, ok := m.drivers[name]; ok {
		m.mu.RUnlock()
		return driver, nil
	}
	m.mu.RUnlock()

	if name == "" || !enabled {
		return nil, fmt.Errorf("provider '%s': %w", name, ErrDriverNotFound)
	}

	driver, err := m.registry.CreateProvider(name)
	if err != nil {
		return nil, err
	}
	if err := driver.Initialize(config); err != nil {
		return nil, fmt.Errorf("failed to initialize provider '%s': %w", name, err)
	}

	m.mu.Lock()
	m.drivers[name] = driver
	m.mu.Unlock()
	return driver, nil
}

// GetFallbackChain returns the ordered provider chain: default first,
// then configured fallbacks, deduplicated, disabled providers excluded.
func (m *PaymentManager) GetFallbackChain() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := make([]string, 0, 1+len(m.fallbacks))
	seen := make(map[string]bool)
	for _, name := range append([]string{m.defaultProvider}, m.fallbacks...) {
		if name == "" || seen[name] {
			continue
		}
		if _, enabled := m.configs[name]; !enabled {
			continue
		}
		chain = append(chain, name)
		seen[name] = true
	}
	return chain
}

// GetEnabledProviders returns a copy of the enabled provider configs
func (m *PaymentManager) GetEnabledProviders() map[string]map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]string, len(m.configs))
	for name, config := range m.configs {
		cp := make(map[string]string, len(config))
		for k, v := range config {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}

// ChargeWithFallback tries each candidate provider in order and returns
// the first successful charge. Providers are attempted strictly
// sequentially: a satisfied attempt stops the chain, so a payment is
// never speculatively initiated on two gateways.
func (m *PaymentManager) ChargeWithFallback(ctx context.Context, request ChargeRequest, providers ...string) (*ChargeResponse, error) {
	request, err := NewChargeRequest(request)
	if err != nil {
		return nil, err
	}

	chain := dedupeNames(providers)
	if len(chain) == 0 {
		chain = m.GetFallbackChain()
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no enabled providers: %w", ErrDriverNotFound)
	}

	attemptErrs := make(map[string]error, len(chain))
	for _, name := range chain {
		driver, err := m.Driver(name)
		if err != nil {
			attemptErrs[name] = err
			continue
		}

		if !driver.IsCurrencySupported(request.Currency) {
			attemptErrs[name] = &ProviderError{Provider: name, Op: "charge",
				Err: fmt.Errorf("currency %s not supported", request.Currency)}
			continue
		}

		// Health gate: a known-unhealthy provider is skipped without a
		// network call. Unknown or stale state is optimistic.
		if healthy, known := m.health.Get(ctx, name); known && !healthy {
			attemptErrs[name] = &ProviderError{Provider: name, Op: "health",
				Err: errors.New("provider marked unhealthy")}
			continue
		}

		attempt := request
		if attempt.Reference == "" {
			attempt.Reference = m.generateReference(name)
		}

		result, err := m.breaker(name).Execute(func() (any, error) {
			return driver.Charge(ctx, attempt)
		})
		if err != nil {
			attemptErrs[name] = &ProviderError{Provider: name, Op: "charge", Err: err}
			logger.Warn("Charge attempt failed, trying next provider", logger.LogContext{
				Provider: name,
				Fields:   map[string]any{"reference": attempt.Reference, "error": err.Error()},
			})
			continue
		}

		response := result.(*ChargeResponse)
		response.Provider = name
		if response.Reference == "" {
			response.Reference = attempt.Reference
		}
		m.health.Set(ctx, name, true, m.healthTTL)
		m.persistCharge(ctx, attempt, response)
		return response, nil
	}

	return nil, &AllProvidersFailedError{Op: "charge", Errors: attemptErrs}
}

// Verify checks the settled state of a payment. With an explicit
// provider the lookup is direct; otherwise the reference prefix decides,
// and as a last resort every enabled provider is tried in turn.
func (m *PaymentManager) Verify(ctx context.Context, reference, providerName string) (*VerificationResponse, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, &InvalidRequestError{Err: errors.New("reference is required")}
	}

	if providerName != "" {
		return m.verifyWith(ctx, providerName, reference)
	}

	// A prefix match on a provider that is not enabled here counts as a
	// miss; the scan below still gets a chance.
	if detected, ok := m.detector.DetectFromReference(reference); ok {
		if _, err := m.Driver(detected); err == nil {
			return m.verifyWith(ctx, detected, reference)
		}
	}

	attemptErrs := make(map[string]error)
	for _, name := range m.enabledScanOrder() {
		response, err := m.verifyWith(ctx, name, reference)
		if err != nil {
			attemptErrs[name] = err
			continue
		}
		return response, nil
	}
	if len(attemptErrs) == 0 {
		return nil, fmt.Errorf("no enabled providers: %w", ErrDriverNotFound)
	}
	return nil, &AllProvidersFailedError{Op: "verify", Errors: attemptErrs}
}

func (m *PaymentManager) verifyWith(ctx context.Context, name, reference string) (*VerificationResponse, error) {
	driver, err := m.Driver(name)
	if err != nil {
		return nil, err
	}

	verificationID := driver.ResolveVerificationID(reference, m.internalReference(ctx, reference))
	response, err := driver.Verify(ctx, verificationID)
	if err != nil {
		return nil, &ProviderError{Provider: name, Op: "verify", Err: err}
	}

	response.Provider = name
	if response.Reference == "" {
		response.Reference = reference
	}
	m.applyVerification(ctx, response)
	return response, nil
}

// internalReference loads the provider-internal ID captured at charge
// time, when a transaction row exists and carries one
func (m *PaymentManager) internalReference(ctx context.Context, reference string) string {
	if m.store == nil {
		return ""
	}
	tx, err := m.store.FindByReference(ctx, reference)
	if err != nil {
		return ""
	}
	if internal, ok := tx.Metadata[metaProviderReference].(string); ok {
		return internal
	}
	return ""
}

// applyVerification updates the matching transaction under lock. Safe to
// call twice; a failed update is logged, never propagated, because the
// provider-side verification already succeeded.
func (m *PaymentManager) applyVerification(ctx context.Context, response *VerificationResponse) {
	if m.store == nil {
		return
	}
	err := m.store.UpdateLocked(ctx, response.Reference, func(tx *Transaction) (bool, error) {
		return applyStatusUpdate(tx, response.Status, m.normalizer, response.PaidAt, response.Channel), nil
	})
	if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		logger.Warn("Failed to update transaction after verification", logger.LogContext{
			Provider: response.Provider,
			Fields:   map[string]any{"reference": response.Reference, "error": err.Error()},
		})
	}
}

// ValidateWebhook checks an inbound webhook's signature with the owning
// driver. rawBody must be the unmodified request body.
func (m *PaymentManager) ValidateWebhook(providerName string, headers map[string]string, rawBody []byte) (bool, error) {
	driver, err := m.Driver(providerName)
	if err != nil {
		return false, err
	}
	return driver.ValidateWebhook(headers, rawBody), nil
}

// ProcessWebhook is the queued unit of work behind webhook ingestion.
// The signature has already been verified at the boundary. A persistence
// failure returns TransactionUpdateError so the queue can retry; events
// are dispatched once the update (or no-op) is through.
func (m *PaymentManager) ProcessWebhook(ctx context.Context, providerName string, rawBody []byte) error {
	driver, err := m.Driver(providerName)
	if err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return fmt.Errorf("%s: malformed webhook payload: %w", providerName, err)
	}

	reference, hasReference := driver.ExtractWebhookReference(payload)
	if hasReference {
		rawStatus := driver.ExtractWebhookStatus(payload)
		channel, _ := driver.ExtractWebhookChannel(payload)

		// A payload can carry a reference with no status (ping events,
		// partial notifications). No status means no state to apply.
		if m.store != nil && strings.TrimSpace(rawStatus) != "" {
			err := m.store.UpdateLocked(ctx, reference, func(tx *Transaction) (bool, error) {
				return applyStatusUpdate(tx, rawStatus, m.normalizer, nil, channel), nil
			})
			switch {
			case errors.Is(err, ErrTransactionNotFound):
				// Webhook may describe a payment this service never
				// initiated (test pings, external charges): event still fires
				logger.Info("Webhook for unknown transaction", logger.LogContext{
					Provider: providerName,
					Fields:   map[string]any{"reference": reference},
				})
			case err != nil:
				return &TransactionUpdateError{Reference: reference, Err: err}
			}
		}
	}

	if m.events != nil {
		m.events.Dispatch(ctx, "payment.webhook.received", providerName, reference, payload)
		m.events.Dispatch(ctx, providerName+".webhook.received", providerName, reference, payload)
	}
	return nil
}

// RefreshHealth probes every enabled provider and caches the results.
// Probes use a shorter timeout than charge/verify calls.
func (m *PaymentManager) RefreshHealth(ctx context.Context) map[string]bool {
	results := make(map[string]bool)
	for name := range m.GetEnabledProviders() {
		driver, err := m.Driver(name)
		if err != nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
		healthy := driver.HealthCheck(probeCtx)
		cancel()

		m.health.Set(ctx, name, healthy, m.healthTTL)
		results[name] = healthy
		if !healthy {
			logger.Warn("Provider health check failed", logger.LogContext{Provider: name})
		}
	}
	return results
}

func (m *PaymentManager) persistCharge(ctx context.Context, request ChargeRequest, response *ChargeResponse) {
	if m.store == nil {
		return
	}

	metadata := make(map[string]any, len(request.Metadata)+1)
	for k, v := range request.Metadata {
		metadata[k] = v
	}
	if response.AccessCode != "" {
		metadata[metaProviderReference] = response.AccessCode
	}

	now := time.Now().UTC()
	tx := &Transaction{
		Reference: response.Reference,
		Provider:  response.Provider,
		Status:    m.normalizer.Normalize(response.Status, response.Provider),
		Amount:    request.Amount,
		Currency:  request.Currency,
		Email:     request.Email,
		Metadata:  metadata,
		Customer:  request.Customer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Best effort: a persistence outage must never block payment availability
	if err := m.store.CreateOrUpdate(ctx, tx); err != nil {
		logger.Warn("Failed to persist transaction at charge time", logger.LogContext{
			Provider: response.Provider,
			Fields:   map[string]any{"reference": response.Reference, "error": err.Error()},
		})
	}
}

// enabledScanOrder is the fallback chain followed by the remaining
// enabled providers in stable order
func (m *PaymentManager) enabledScanOrder() []string {
	chain := m.GetFallbackChain()
	seen := make(map[string]bool, len(chain))
	for _, name := range chain {
		seen[name] = true
	}

	var rest []string
	for name := range m.GetEnabledProviders() {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(chain, rest...)
}

// dedupeNames drops empty and repeated names, keeping first-occurrence order
func dedupeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		out = append(out, name)
		seen[name] = true
	}
	return out
}

func (m *PaymentManager) generateReference(providerName string) string {
	prefix, ok := m.detector.PrefixFor(providerName)
	if !ok {
		prefix = "PAYBRIDGE_"
	}
	return prefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (m *PaymentManager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider circuit state changed", logger.LogContext{
				Provider: name,
				Fields:   map[string]any{"from": from.String(), "to": to.String()},
			})
		},
	})
	m.breakers[name] = cb
	return cb
}

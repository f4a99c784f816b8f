package config

import (
	"fmt"
	"strings"
	"sync"
)

// providerEnvKeys maps each known provider's config keys to the
// environment variables that carry them
var providerEnvKeys = map[string]map[string]string{
	"paystack": {
		"secretKey": "PAYSTACK_SECRET_KEY",
	},
	"stripe": {
		"secretKey":     "STRIPE_SECRET_KEY",
		"webhookSecret": "STRIPE_WEBHOOK_SECRET",
	},
	"flutterwave": {
		"secretKey":     "FLUTTERWAVE_SECRET_KEY",
		"webhookSecret": "FLUTTERWAVE_WEBHOOK_HASH",
	},
	"monnify": {
		"apiKey":       "MONNIFY_API_KEY",
		"secretKey":    "MONNIFY_SECRET_KEY",
		"contractCode": "MONNIFY_CONTRACT_CODE",
	},
}

// ProviderConfig holds per-provider credentials and the fallback chain
// configuration, loaded from the environment
type ProviderConfig struct {
	configs   map[string]map[string]string
	defaults  string
	fallbacks []string
	mu        sync.RWMutex
}

// NewProviderConfig creates an empty provider configuration
func NewProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		configs: make(map[string]map[string]string),
	}
}

// LoadFromEnv reads credentials for every known provider. A provider is
// enabled when it has at least one credential set and <PROVIDER>_ENABLED
// is not explicitly "false".
func (c *ProviderConfig) LoadFromEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, keys := range providerEnvKeys {
		if !GetBoolEnv(strings.ToUpper(name)+"_ENABLED", true) {
			continue
		}
		config := make(map[string]string)
		for configKey, envVar := range keys {
			if value := GetEnv(envVar, ""); value != "" {
				config[configKey] = value
			}
		}
		if len(config) > 0 {
			c.configs[name] = config
		}
	}

	c.defaults = GetEnv("PAYMENT_DEFAULT_PROVIDER", "")
	c.fallbacks = nil
	for _, name := range strings.Split(GetEnv("PAYMENT_FALLBACK_PROVIDERS", ""), ",") {
		if name = strings.TrimSpace(name); name != "" {
			c.fallbacks = append(c.fallbacks, name)
		}
	}
}

// SetConfig sets a provider's configuration programmatically
func (c *ProviderConfig) SetConfig(name string, config map[string]string) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if len(config) == 0 {
		return fmt.Errorf("config cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[name] = config
	return nil
}

// GetConfig returns a provider's configuration
func (c *ProviderConfig) GetConfig(name string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.configs[name]
	if !ok {
		return nil, fmt.Errorf("no configuration for provider '%s'", name)
	}
	cp := make(map[string]string, len(config))
	for k, v := range config {
		cp[k] = v
	}
	return cp, nil
}

// GetAvailableProviders lists providers with loaded configuration
func (c *ProviderConfig) GetAvailableProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.configs))
	for name := range c.configs {
		names = append(names, name)
	}
	return names
}

// GetDefaultProvider returns the configured default provider name
func (c *ProviderConfig) GetDefaultProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// GetFallbackProviders returns the configured fallback provider names
func (c *ProviderConfig) GetFallbackProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.fallbacks))
	copy(out, c.fallbacks)
	return out
}

// GetBaseURL returns this service's externally reachable base URL, used
// for provider redirect callbacks
func (c *ProviderConfig) GetBaseURL() string {
	return GetEnv("APP_URL", "http://localhost:8080")
}

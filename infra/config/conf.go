package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig is the service configuration, loaded from the environment
type AppConfig struct {
	Port           string
	DBPath         string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	LoggingLevel   string
	HealthTTL      time.Duration
	HealthInterval time.Duration
	WebhookWorkers int
	WebhookRetries int
	WebhookBackoff time.Duration
}

var appConfigInstance *AppConfig

// GetAppConfig loads (once) and returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:           GetEnv("APP_PORT", "8080"),
			DBPath:         GetEnv("DB_PATH", "data/paybridge.db"),
			RedisAddr:      GetEnv("REDIS_ADDR", ""),
			RedisPassword:  GetEnv("REDIS_PASSWORD", ""),
			RedisDB:        GetIntEnv("REDIS_DB", 0),
			OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:   GetEnv("LOGGING_LEVEL", "info"),
			HealthTTL:      GetDurationEnv("HEALTH_CACHE_TTL", 300*time.Second),
			HealthInterval: GetDurationEnv("HEALTH_PROBE_INTERVAL", 60*time.Second),
			WebhookWorkers: GetIntEnv("WEBHOOK_WORKERS", 2),
			WebhookRetries: GetIntEnv("WEBHOOK_RETRIES", 3),
			WebhookBackoff: GetDurationEnv("WEBHOOK_BACKOFF", 2*time.Second),
		}
	}
	return appConfigInstance
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv returns the duration value of an environment variable or a default value
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

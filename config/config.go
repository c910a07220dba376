// Package config handles loading and managing application configuration.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage backends
	Database DatabaseConfig
	Redis    RedisConfig

	// Site the donations are made on
	Site SiteConfig

	// Braintree client behaviour
	Braintree BraintreeConfig

	// Donation host callbacks
	Host HostConfig

	// Security settings
	Security SecurityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	GinMode  string // "debug", "release", or "test"
	LogLevel string
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

// RedisConfig holds the Redis connection and cache lifetimes.
type RedisConfig struct {
	URL              string
	CustomerCacheTTL time.Duration
	WebhookEventTTL  time.Duration
}

// SiteConfig describes the donation site.
type SiteConfig struct {
	Name     string
	URL      string
	Currency string
}

// Host returns the host part of the site URL.
func (s SiteConfig) Host() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(s.URL, "https://"), "http://")
	}
	return u.Hostname()
}

// BraintreeConfig holds Braintree client settings. Credentials live in the
// settings store.
type BraintreeConfig struct {
	HTTPTimeout time.Duration
}

// HostConfig holds the donation host's webhook callback. Unhandled webhook
// kinds are forwarded there when CallbackURL is set.
type HostConfig struct {
	CallbackURL    string
	CallbackSecret string
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	ServiceAPIKey string // bearer token the host authenticates with
}

// Load reads configuration from environment variables, after loading a
// .env file when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			GinMode:  getEnv("GIN_MODE", "debug"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", ""),
			CustomerCacheTTL: getEnvDuration("CUSTOMER_CACHE_TTL", time.Hour),
			WebhookEventTTL:  getEnvDuration("WEBHOOK_EVENT_TTL", 72*time.Hour),
		},
		Site: SiteConfig{
			Name:     getEnv("SITE_NAME", ""),
			URL:      getEnv("SITE_URL", ""),
			Currency: strings.ToUpper(getEnv("CURRENCY", "USD")),
		},
		Braintree: BraintreeConfig{
			HTTPTimeout: getEnvDuration("BRAINTREE_HTTP_TIMEOUT", 30*time.Second),
		},
		Host: HostConfig{
			CallbackURL:    strings.TrimRight(getEnv("HOST_CALLBACK_URL", ""), "/"),
			CallbackSecret: getEnv("HOST_CALLBACK_SECRET", ""),
		},
		Security: SecurityConfig{
			ServiceAPIKey: getEnv("SERVICE_API_KEY", ""),
		},
	}
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
// Plain integers are read as seconds by getEnvDuration.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration ("30s",
// "72h") or a number of seconds, with a fallback.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds := getEnvInt(key, 0); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Finance API
	APIURL           string
	ProfilePath      string // "/me" on current deployments, "/profile" on older ones
	ExpenseTypesPath string // "/types-of-expense" or the paged "/type-of-expenses"

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience. Retries stay off unless MAX_RETRIES is set: failed reads
	// surface as errors and the user retries by navigating.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Query cache
	StaleTime      time.Duration
	SessionIdleTTL time.Duration

	// Session cookie
	CookieSecret string
	CookieSecure bool
	SessionTTL   time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIURL:           getEnv("API_URL", "http://localhost:3333"),
		ProfilePath:      getEnv("API_PROFILE_PATH", "/me"),
		ExpenseTypesPath: getEnv("API_EXPENSE_TYPES_PATH", "/types-of-expense"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		StaleTime:      getEnvDuration("QUERY_STALE_TIME", 30*time.Second),
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),

		CookieSecret: getEnv("COOKIE_SECRET", "pato-rico-dev-secret-change-me"),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",
		SessionTTL:   getEnvDuration("SESSION_TTL", 7*24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

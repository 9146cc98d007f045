package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds client and reference-backend configuration.
type Config struct {
	Env       string
	LogLevel  string
	LogFormat string

	APIBaseURL  string
	HTTPTimeout time.Duration

	// Session persistence
	SessionBackend   string
	SessionFile      string
	SessionKeyPrefix string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisTLS         bool
	SessionTable     string
	SessionTTL       time.Duration

	// AWS (dynamodb session backend)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Booking wizard
	BookingDaysAhead int

	MetricsAddr string

	// Reference backend (cmd/mockserver)
	MockPort      string
	MockJWTSecret string
	MockTokenTTL  time.Duration
	// MockAllowedOrigins is a comma-separated CORS allow list.
	MockAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),

		APIBaseURL:  strings.TrimRight(getEnv("BARBER_API_BASE_URL", "http://localhost:3000/api"), "/"),
		HTTPTimeout: getEnvAsDuration("BARBER_HTTP_TIMEOUT", 15*time.Second),

		SessionBackend:   strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "file"))),
		SessionFile:      getEnv("SESSION_FILE", defaultSessionFile()),
		SessionKeyPrefix: getEnv("SESSION_KEY_PREFIX", "@BarberSaaS"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		SessionTable:     getEnv("SESSION_TABLE", "barbershop_sessions"),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 0),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BookingDaysAhead: getEnvAsInt("BOOKING_DAYS_AHEAD", 14),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		MockPort:      getEnv("MOCK_PORT", "3000"),
		MockJWTSecret: getEnv("MOCK_JWT_SECRET", "dev-only-secret"),
		MockTokenTTL:  getEnvAsDuration("MOCK_TOKEN_TTL", 24*time.Hour),

		MockAllowedOrigins: getEnv("MOCK_ALLOWED_ORIGINS", ""),
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".barbershop", "session.json")
	}
	return filepath.Join(home, ".barbershop", "session.json")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

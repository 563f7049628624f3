package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Environment string
	FrontendURL string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Payment processor configuration
	StripeSecretKey     string
	StripeWebhookSecret string
	GatewayTimeout      time.Duration

	// Identity configuration
	FirebaseProjectID string

	// Catalog defaults
	DefaultEventName string

	// Mail configuration
	MailFromName string

	// Checkout throttling
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration

	// Webhook deduplication
	WebhookDedupTTL time.Duration

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "festival-backend"),

		// Payment processor
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		GatewayTimeout:      getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),

		// Identity
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),

		// Catalog
		DefaultEventName: getEnv("DEFAULT_EVENT_NAME", "Festival"),

		// Mail
		MailFromName: getEnv("MAIL_FROM_NAME", "Festival Tickets"),

		// Checkout
		CheckoutRateLimit:  getEnvAsInt("CHECKOUT_RATE_LIMIT", 10),
		CheckoutRateWindow: getEnvAsDuration("CHECKOUT_RATE_WINDOW", "1m"),

		// Webhooks
		WebhookDedupTTL: getEnvAsDuration("WEBHOOK_DEDUP_TTL", "24h"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

// IsDevelopment gates endpoints that must never be reachable in production.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

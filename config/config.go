package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application-level settings. Infrastructure packages
// (database, cache, kafka) read their own connection env vars.
type Config struct {
	Addr                string
	PublicBaseURL       string
	JWTSecret           string
	OrderTokenSecret    string
	StripeWebhookSecret string
	BotCheckURL         string
	BotCheckSecret      string
	KafkaTopic          string
}

// Load reads .env when present, then the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                getEnv("ADDR", ":8080"),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-jwt-secret"),
		OrderTokenSecret:    getEnv("ORDER_TOKEN_SECRET", "dev-order-token-secret"),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		BotCheckURL:         getEnv("BOTCHECK_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		BotCheckSecret:      getEnv("BOTCHECK_SECRET", ""),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "localys_events"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

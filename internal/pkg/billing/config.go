package billing

import (
	"strings"

	"github.com/faithcal/faithcal/internal/pkg/env"
)

// Config holds the Stripe settings read from the environment.
type Config struct {
	SecretKey      string
	WebhookSecret  string
	PremiumPriceID string
	Currency       string
	// BaseURL is the public origin used to build checkout redirect URLs.
	BaseURL string
}

// LoadConfig loads billing configuration from environment variables.
func LoadConfig() Config {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return Config{
		SecretKey:      strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret:  strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		PremiumPriceID: strings.TrimSpace(env.GetEnv("STRIPE_PREMIUM_PRICE_ID", "")),
		Currency:       strings.ToLower(env.GetEnv("STRIPE_CURRENCY", "usd")),
		BaseURL:        base,
	}
}

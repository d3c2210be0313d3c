package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Codemagic
	CodemagicAPIToken        string
	CodemagicAPIBaseURL      string
	CodemagicAppID           string
	CodemagicBranch          string
	CodemagicAndroidWorkflow string
	CodemagicIOSWorkflow     string
	CodemagicWebhookToken    string

	// GitHub repository receiving the generated app sources
	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	BuildPriceMinor     int64
	BuildCurrency       string

	// Resend
	ResendAPIKey     string
	ResendAPIBaseURL string
	EmailFrom        string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	BaseURL     string
	FrontendURL string

	// Per-user request budget for build submission and checkout
	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() (*Config, error) {
	// A missing .env is fine; the process environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		CodemagicAPIToken:        getEnv("CODEMAGIC_API_TOKEN", ""),
		CodemagicAPIBaseURL:      getEnv("CODEMAGIC_API_BASE_URL", "https://api.codemagic.io"),
		CodemagicAppID:           getEnv("CODEMAGIC_APP_ID", ""),
		CodemagicBranch:          getEnv("CODEMAGIC_BRANCH", "main"),
		CodemagicAndroidWorkflow: getEnv("CODEMAGIC_ANDROID_WORKFLOW", "android-workflow"),
		CodemagicIOSWorkflow:     getEnv("CODEMAGIC_IOS_WORKFLOW", "ios-workflow"),
		CodemagicWebhookToken:    getEnv("CODEMAGIC_WEBHOOK_TOKEN", ""),

		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		GitHubOwner:  getEnv("GITHUB_OWNER", ""),
		GitHubRepo:   getEnv("GITHUB_REPO", ""),
		GitHubBranch: getEnv("GITHUB_BRANCH", "main"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "app-assets"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		BuildPriceMinor:     int64(getEnvInt("BUILD_PRICE_MINOR", 280000)),
		BuildCurrency:       getEnv("BUILD_CURRENCY", "inr"),

		ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
		ResendAPIBaseURL: getEnv("RESEND_API_BASE_URL", "https://api.resend.com"),
		EmailFrom:        getEnv("EMAIL_FROM", "Web2App <builds@web2app.dev>"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 5),
	}

	if cfg.SupabaseServiceRoleKey == "" {
		cfg.SupabaseServiceRoleKey = cfg.SupabasePublishableKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CodemagicAPIToken == "" {
		return fmt.Errorf("CODEMAGIC_API_TOKEN is required")
	}
	if c.CodemagicAppID == "" {
		return fmt.Errorf("CODEMAGIC_APP_ID is required")
	}
	if c.GitHubToken == "" || c.GitHubOwner == "" || c.GitHubRepo == "" {
		return fmt.Errorf("GITHUB_TOKEN, GITHUB_OWNER and GITHUB_REPO are required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.BuildPriceMinor <= 0 {
		return fmt.Errorf("BUILD_PRICE_MINOR must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

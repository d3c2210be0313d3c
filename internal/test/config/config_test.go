package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web2app-backend/internal/config"
)

func setRequired(t *testing.T) {
	t.Setenv("CODEMAGIC_API_TOKEN", "cm-token")
	t.Setenv("CODEMAGIC_APP_ID", "cm-app")
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GITHUB_OWNER", "acme")
	t.Setenv("GITHUB_REPO", "apps")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_PUBLISHABLE_KEY", "anon-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/web2app")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, int64(280000), cfg.BuildPriceMinor)
	assert.Equal(t, "inr", cfg.BuildCurrency)
	assert.Equal(t, "android-workflow", cfg.CodemagicAndroidWorkflow)
	assert.Equal(t, "ios-workflow", cfg.CodemagicIOSWorkflow)
	assert.Equal(t, "main", cfg.GitHubBranch)
	assert.Equal(t, "8080", cfg.Port)
	// Falls back to the publishable key.
	assert.Equal(t, "anon-key", cfg.SupabaseServiceRoleKey)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BUILD_PRICE_MINOR", "100")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.BuildPriceMinor)
	assert.Equal(t, 10, cfg.RateLimitPerMinute)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("CODEMAGIC_API_TOKEN", "")

	_, err := config.Load()
	assert.ErrorContains(t, err, "CODEMAGIC_API_TOKEN")
}

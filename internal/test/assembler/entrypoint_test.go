package assembler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web2app-backend/internal/assembler"
	"web2app-backend/internal/models"
)

func baseConfig() *models.BuildConfig {
	return &models.BuildConfig{
		WebsiteURL: "https://shop.example.com",
		AppName:    "Example Shop",
		PackageID:  "com.example.shop",
		Platforms:  []models.Platform{models.PlatformAndroid},
	}
}

func TestBuildEntryPoint_NoNavigation(t *testing.T) {
	cfg := baseConfig()
	cfg.NavItems = []models.NavItem{{Label: "Ignored", URL: "/ignored"}}

	src, err := assembler.BuildEntryPoint(cfg)
	require.NoError(t, err)

	assert.NotContains(t, src, "NavigationContainer")
	assert.NotContains(t, src, "createBottomTabNavigator")
	assert.NotContains(t, src, "createDrawerNavigator")
	assert.NotContains(t, src, "@react-navigation")
	assert.NotContains(t, src, "react-native-gesture-handler")
	assert.NotContains(t, src, "Ignored")
	assert.Contains(t, src, `const WEBSITE_URL = "https://shop.example.com";`)
	assert.Contains(t, src, "<WebContent uri={WEBSITE_URL} />")
}

func TestBuildEntryPoint_Tabs(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableNavigation = true
	cfg.NavigationType = models.NavigationTabs
	cfg.NavItems = []models.NavItem{
		{Label: "Home", URL: "/"},
		{Label: "Blog", URL: "https://blog.example.com", Icon: "book-outline", IsExternal: true},
	}

	src, err := assembler.BuildEntryPoint(cfg)
	require.NoError(t, err)

	assert.Contains(t, src, "createBottomTabNavigator")
	assert.NotContains(t, src, "createDrawerNavigator")
	assert.Equal(t, 2, strings.Count(src, "<Tab.Screen"))
	assert.Contains(t, src, `name={"book-outline"}`)
	assert.Contains(t, src, "tabPress")
	assert.Contains(t, src, `openExternally("https://blog.example.com")`)
}

func TestBuildEntryPoint_DrawerKeepsItemOrder(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableNavigation = true
	cfg.NavigationType = models.NavigationDrawer
	cfg.NavItems = []models.NavItem{
		{Label: "Home", URL: "/"},
		{Label: "About", URL: "/about"},
		{Label: "Contact", URL: "contact"},
	}

	src, err := assembler.BuildEntryPoint(cfg)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(src, "import 'react-native-gesture-handler';"))
	assert.Equal(t, 3, strings.Count(src, "<Drawer.Screen"))
	assert.NotContains(t, src, "createBottomTabNavigator")

	home := strings.Index(src, `name={"Home"}`)
	about := strings.Index(src, `name={"About"}`)
	contact := strings.Index(src, `name={"Contact"}`)
	require.True(t, home >= 0 && about >= 0 && contact >= 0)
	assert.Less(t, home, about)
	assert.Less(t, about, contact)

	assert.Equal(t, 1, strings.Count(src, `"https://shop.example.com/about"`))
	assert.Equal(t, 1, strings.Count(src, `"https://shop.example.com/contact"`))
}

func TestPlanEntryPoint_DuplicateLabels(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableNavigation = true
	cfg.NavItems = []models.NavItem{
		{Label: "Shop", URL: "/a"},
		{Label: "Shop", URL: "/b"},
	}

	plan, err := assembler.PlanEntryPoint(cfg)
	require.NoError(t, err)

	require.Len(t, plan.Screens, 2)
	assert.Equal(t, "Shop", plan.Screens[0].Name)
	assert.Equal(t, "Shop (2)", plan.Screens[1].Name)
	assert.Equal(t, "Shop", plan.Screens[1].Label)
}

func TestPlanEntryPoint_EmptyNavigationFallsBackToHome(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableNavigation = true

	plan, err := assembler.PlanEntryPoint(cfg)
	require.NoError(t, err)

	assert.Equal(t, assembler.VariantTabs, plan.Variant)
	require.Len(t, plan.Screens, 1)
	assert.Equal(t, "Home", plan.Screens[0].Name)
	assert.Equal(t, "https://shop.example.com", plan.Screens[0].URL)
}

func TestPlanEntryPoint_InvalidURL(t *testing.T) {
	cfg := baseConfig()
	cfg.WebsiteURL = "not a url"

	_, err := assembler.PlanEntryPoint(cfg)
	assert.ErrorIs(t, err, assembler.ErrInvalidWebsiteURL)
}

func TestResolveItemURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		item    string
		expects string
	}{
		{"relative with slash", "https://example.com", "/about", "https://example.com/about"},
		{"relative without slash", "https://example.com/", "about", "https://example.com/about"},
		{"absolute", "https://example.com", "https://other.com/x", "https://other.com/x"},
		{"mailto", "https://example.com", "mailto:hi@example.com", "mailto:hi@example.com"},
		{"empty", "https://example.com", "", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expects, assembler.ResolveItemURL(tt.base, tt.item))
		})
	}
}

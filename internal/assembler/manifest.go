package assembler

import (
	"encoding/json"
	"regexp"
	"strings"

	"web2app-backend/internal/models"
)

// Repository paths of the published artifacts.
const (
	ManifestPath   = "app.json"
	EntryPointPath = "App.js"
	PipelinePath   = "codemagic.yaml"
)

// Binary assets are republished under every slot that consumes them.
var (
	IconPaths   = []string{"assets/icon.png", "assets/adaptive-icon.png", "assets/favicon.png"}
	SplashPaths = []string{"assets/splash.png", "assets/splash-icon.png"}
)

const defaultSplashBackground = "#ffffff"

type Manifest struct {
	Expo ExpoConfig `json:"expo"`
}

type ExpoConfig struct {
	Name                string          `json:"name"`
	Slug                string          `json:"slug"`
	Version             string          `json:"version"`
	Description         string          `json:"description,omitempty"`
	Orientation         string          `json:"orientation"`
	Icon                string          `json:"icon"`
	UserInterfaceStyle  string          `json:"userInterfaceStyle"`
	Splash              SplashManifest  `json:"splash"`
	AssetBundlePatterns []string        `json:"assetBundlePatterns"`
	IOS                 IOSManifest     `json:"ios"`
	Android             AndroidManifest `json:"android"`
	Web                 WebManifest     `json:"web"`
	Extra               ManifestExtra   `json:"extra"`
}

type SplashManifest struct {
	Image           string `json:"image"`
	ResizeMode      string `json:"resizeMode"`
	BackgroundColor string `json:"backgroundColor"`
}

type IOSManifest struct {
	BundleIdentifier string `json:"bundleIdentifier"`
	SupportsTablet   bool   `json:"supportsTablet"`
}

type AndroidManifest struct {
	Package      string       `json:"package"`
	AdaptiveIcon AdaptiveIcon `json:"adaptiveIcon"`
	Permissions  []string     `json:"permissions"`
}

type AdaptiveIcon struct {
	ForegroundImage string `json:"foregroundImage"`
	BackgroundColor string `json:"backgroundColor"`
}

type WebManifest struct {
	Favicon string `json:"favicon"`
}

// ManifestExtra is read at runtime by the generated app.
type ManifestExtra struct {
	WebsiteURL       string             `json:"websiteUrl"`
	AppDescription   string             `json:"appDescription,omitempty"`
	EnableNavigation bool               `json:"enableNavigation"`
	NavigationType   string             `json:"navigationType,omitempty"`
	NavItems         []models.NavItem   `json:"navItems"`
	NavBarStyle      models.NavBarStyle `json:"navBarStyle"`
}

// BuildManifest renders the app identity for the generated project.
func BuildManifest(cfg *models.BuildConfig) (*Manifest, error) {
	if _, err := parseSiteURL(cfg.WebsiteURL); err != nil {
		return nil, err
	}

	splashBackground := cfg.SplashConfig.BackgroundColor
	if splashBackground == "" {
		splashBackground = defaultSplashBackground
	}
	resizeMode := cfg.SplashConfig.ResizeMode
	if resizeMode == "" {
		resizeMode = "contain"
	}

	navItems := cfg.NavItems
	if navItems == nil {
		navItems = []models.NavItem{}
	}
	navType := ""
	if cfg.EnableNavigation {
		navType = string(navigationType(cfg))
	}

	return &Manifest{Expo: ExpoConfig{
		Name:                cfg.AppName,
		Slug:                Slugify(cfg.AppName),
		Version:             "1.0.0",
		Description:         cfg.AppDescription,
		Orientation:         "portrait",
		Icon:                "./" + IconPaths[0],
		UserInterfaceStyle:  "light",
		AssetBundlePatterns: []string{"**/*"},
		Splash: SplashManifest{
			Image:           "./" + SplashPaths[0],
			ResizeMode:      resizeMode,
			BackgroundColor: splashBackground,
		},
		IOS: IOSManifest{
			BundleIdentifier: cfg.PackageID,
			SupportsTablet:   true,
		},
		Android: AndroidManifest{
			Package: cfg.PackageID,
			AdaptiveIcon: AdaptiveIcon{
				ForegroundImage: "./" + IconPaths[1],
				BackgroundColor: splashBackground,
			},
			Permissions: []string{"INTERNET", "ACCESS_NETWORK_STATE"},
		},
		Web: WebManifest{Favicon: "./" + IconPaths[2]},
		Extra: ManifestExtra{
			WebsiteURL:       strings.TrimSpace(cfg.WebsiteURL),
			AppDescription:   cfg.AppDescription,
			EnableNavigation: cfg.EnableNavigation,
			NavigationType:   navType,
			NavItems:         navItems,
			NavBarStyle:      cfg.NavBarStyle,
		},
	}}, nil
}

// RenderManifest returns the indented app.json text.
func RenderManifest(cfg *models.BuildConfig) ([]byte, error) {
	manifest, err := BuildManifest(cfg)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases and dashes a display name.
func Slugify(name string) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "app"
	}
	return slug
}

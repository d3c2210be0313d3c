package models

// Platform is a build target.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// NavigationType selects the navigation container of the generated app.
type NavigationType string

const (
	NavigationTabs   NavigationType = "tabs"
	NavigationDrawer NavigationType = "drawer"
)

// BuildConfig is the configuration accumulated by the Builder wizard.
type BuildConfig struct {
	WebsiteURL       string          `json:"websiteUrl"`
	AppName          string          `json:"appName"`
	PackageID        string          `json:"packageId"`
	AppDescription   string          `json:"appDescription,omitempty"`
	AppIcon          string          `json:"appIcon,omitempty"` // base64 or data URL
	SplashConfig     SplashConfig    `json:"splashConfig"`
	EnableNavigation bool            `json:"enableNavigation"`
	NavigationType   NavigationType  `json:"navigationType,omitempty"`
	NavItems         []NavItem       `json:"navItems,omitempty"`
	NavBarStyle      NavBarStyle     `json:"navBarStyle"`
	KeystoreConfig   *KeystoreConfig `json:"keystoreConfig,omitempty"`
	Platforms        []Platform      `json:"platforms"`
}

type SplashConfig struct {
	Image           string `json:"image,omitempty"` // base64 or data URL
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ResizeMode      string `json:"resizeMode,omitempty"` // contain, cover, native
}

type NavItem struct {
	Label      string `json:"label"`
	URL        string `json:"url"`
	Icon       string `json:"icon,omitempty"`
	IsExternal bool   `json:"isExternal"`
}

type NavBarStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ActiveColor     string `json:"activeColor,omitempty"`
	InactiveColor   string `json:"inactiveColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	BorderColor     string `json:"borderColor,omitempty"`
}

// KeystoreConfig carries Android signing parameters. It is accepted from the
// wizard but not forwarded to the CI service yet.
type KeystoreConfig struct {
	Alias         string `json:"alias,omitempty"`
	StorePassword string `json:"storePassword,omitempty"`
	KeyPassword   string `json:"keyPassword,omitempty"`
	Keystore      string `json:"keystore,omitempty"`
}

package assembler

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"web2app-backend/internal/models"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var entryTemplates = template.Must(
	template.New("entry").
		Delims("<%", "%>").
		Funcs(template.FuncMap{
			"lit":        jsLiteral,
			"importLine": importLine,
		}).
		ParseFS(templatesFS, "templates/*.tmpl"),
)

// Variant is the structural shape of the generated entry point.
type Variant int

const (
	VariantNoNav Variant = iota
	VariantTabs
	VariantDrawer
)

func (v Variant) String() string {
	switch v {
	case VariantTabs:
		return "tabs"
	case VariantDrawer:
		return "drawer"
	default:
		return "none"
	}
}

func (v Variant) templateName() string {
	switch v {
	case VariantTabs:
		return "tabs.js.tmpl"
	case VariantDrawer:
		return "drawer.js.tmpl"
	default:
		return "nonav.js.tmpl"
	}
}

const (
	SplashDurationMs = 3000
	LoadTimeoutMs    = 15000
	defaultTabIcon   = "globe-outline"
)

// Import is one ES module import of the generated source. An import with no
// default and no named bindings is a side-effect import.
type Import struct {
	Default string
	Named   []string
	From    string
}

// Screen is one navigation destination.
type Screen struct {
	Name     string
	Label    string
	URL      string
	Icon     string
	External bool
}

type Palette struct {
	Background string
	Active     string
	Inactive   string
	Text       string
	Border     string
	Splash     string
}

// EntryPlan is the intermediate representation rendered into App.js.
type EntryPlan struct {
	Variant          Variant
	WebsiteURL       string
	Hostname         string
	Imports          []Import
	Screens          []Screen
	Colors           Palette
	SplashResizeMode string
	SplashDurationMs int
	LoadTimeoutMs    int
}

// VariantFor maps the two navigation switches onto a body variant.
func VariantFor(cfg *models.BuildConfig) Variant {
	if !cfg.EnableNavigation {
		return VariantNoNav
	}
	if navigationType(cfg) == models.NavigationDrawer {
		return VariantDrawer
	}
	return VariantTabs
}

func navigationType(cfg *models.BuildConfig) models.NavigationType {
	if cfg.NavigationType == "" {
		return models.NavigationTabs
	}
	return cfg.NavigationType
}

// PlanEntryPoint builds the IR for a config.
func PlanEntryPoint(cfg *models.BuildConfig) (*EntryPlan, error) {
	site, err := parseSiteURL(cfg.WebsiteURL)
	if err != nil {
		return nil, err
	}
	websiteURL := site.String()

	plan := &EntryPlan{
		Variant:          VariantFor(cfg),
		WebsiteURL:       websiteURL,
		Hostname:         strings.ToLower(site.Hostname()),
		Colors:           paletteFor(cfg),
		SplashResizeMode: imageResizeMode(cfg.SplashConfig.ResizeMode),
		SplashDurationMs: SplashDurationMs,
		LoadTimeoutMs:    LoadTimeoutMs,
	}

	switch plan.Variant {
	case VariantTabs:
		plan.Imports = append(baseImports(),
			Import{Named: []string{"NavigationContainer"}, From: "@react-navigation/native"},
			Import{Named: []string{"createBottomTabNavigator"}, From: "@react-navigation/bottom-tabs"},
			Import{Named: []string{"Ionicons"}, From: "@expo/vector-icons"},
		)
		plan.Screens = planScreens(websiteURL, cfg.NavItems)
	case VariantDrawer:
		// The gesture handler must be imported before anything else.
		plan.Imports = append([]Import{{From: "react-native-gesture-handler"}}, baseImports()...)
		plan.Imports = append(plan.Imports,
			Import{Named: []string{"NavigationContainer"}, From: "@react-navigation/native"},
			Import{Named: []string{"createDrawerNavigator"}, From: "@react-navigation/drawer"},
			Import{Named: []string{"Ionicons"}, From: "@expo/vector-icons"},
		)
		plan.Screens = planScreens(websiteURL, cfg.NavItems)
	default:
		plan.Imports = baseImports()
	}

	return plan, nil
}

func baseImports() []Import {
	return []Import{
		{Default: "React", Named: []string{"useEffect", "useRef", "useState"}, From: "react"},
		{Named: []string{"ActivityIndicator", "Animated", "Image", "Linking", "StyleSheet", "Text", "TouchableOpacity", "View"}, From: "react-native"},
		{Named: []string{"WebView"}, From: "react-native-webview"},
		{Default: "NetInfo", From: "@react-native-community/netinfo"},
		{Named: []string{"StatusBar"}, From: "expo-status-bar"},
	}
}

// planScreens keeps input order. Route names must be unique within a
// navigator, so repeated labels get a numeric suffix.
func planScreens(websiteURL string, items []models.NavItem) []Screen {
	if len(items) == 0 {
		return []Screen{{Name: "Home", Label: "Home", URL: websiteURL, Icon: "home-outline"}}
	}

	seen := make(map[string]int, len(items))
	screens := make([]Screen, 0, len(items))
	for i, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			label = fmt.Sprintf("Page %d", i+1)
		}
		name := label
		seen[label]++
		if seen[label] > 1 {
			name = fmt.Sprintf("%s (%d)", label, seen[label])
		}
		icon := item.Icon
		if icon == "" {
			icon = defaultTabIcon
		}
		screens = append(screens, Screen{
			Name:     name,
			Label:    label,
			URL:      ResolveItemURL(websiteURL, item.URL),
			Icon:     icon,
			External: item.IsExternal,
		})
	}
	return screens
}

// ResolveItemURL joins a nav item path onto the site URL. Absolute item URLs
// are used unchanged.
func ResolveItemURL(websiteURL, itemURL string) string {
	itemURL = strings.TrimSpace(itemURL)
	if itemURL == "" {
		return websiteURL
	}
	lower := strings.ToLower(itemURL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return itemURL
	}
	return strings.TrimRight(websiteURL, "/") + "/" + strings.TrimLeft(itemURL, "/")
}

func paletteFor(cfg *models.BuildConfig) Palette {
	style := cfg.NavBarStyle
	splash := cfg.SplashConfig.BackgroundColor
	if splash == "" {
		splash = defaultSplashBackground
	}
	return Palette{
		Background: orDefault(style.BackgroundColor, "#ffffff"),
		Active:     orDefault(style.ActiveColor, "#007AFF"),
		Inactive:   orDefault(style.InactiveColor, "#8E8E93"),
		Text:       orDefault(style.TextColor, "#000000"),
		Border:     orDefault(style.BorderColor, "#E5E5EA"),
		Splash:     splash,
	}
}

// imageResizeMode maps the splash setting onto React Native Image modes,
// which have no "native" mode.
func imageResizeMode(mode string) string {
	switch mode {
	case "cover":
		return "cover"
	case "native":
		return "center"
	default:
		return "contain"
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// RenderEntryPoint renders a plan: shared prelude first, then the variant body.
func RenderEntryPoint(plan *EntryPlan) (string, error) {
	var buf bytes.Buffer
	if err := entryTemplates.ExecuteTemplate(&buf, "common.js.tmpl", plan); err != nil {
		return "", fmt.Errorf("failed to render entry prelude: %w", err)
	}
	if err := entryTemplates.ExecuteTemplate(&buf, plan.Variant.templateName(), plan); err != nil {
		return "", fmt.Errorf("failed to render %s entry body: %w", plan.Variant, err)
	}
	return buf.String(), nil
}

// BuildEntryPoint plans and renders the generated App.js.
func BuildEntryPoint(cfg *models.BuildConfig) (string, error) {
	plan, err := PlanEntryPoint(cfg)
	if err != nil {
		return "", err
	}
	return RenderEntryPoint(plan)
}

// jsLiteral quotes a string as a JavaScript string literal.
func jsLiteral(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func importLine(imp Import) string {
	var bindings []string
	if imp.Default != "" {
		bindings = append(bindings, imp.Default)
	}
	if len(imp.Named) > 0 {
		bindings = append(bindings, "{ "+strings.Join(imp.Named, ", ")+" }")
	}
	if len(bindings) == 0 {
		return fmt.Sprintf("import '%s';", imp.From)
	}
	return fmt.Sprintf("import %s from '%s';", strings.Join(bindings, ", "), imp.From)
}

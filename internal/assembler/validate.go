package assembler

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"web2app-backend/internal/models"
)

var (
	// ErrInvalidConfig wraps every BuildConfig validation failure.
	ErrInvalidConfig = errors.New("invalid build config")
	// ErrInvalidWebsiteURL is returned when the site URL has no usable hostname.
	ErrInvalidWebsiteURL = errors.New("invalid website url")
)

var packageIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)

// Validate checks a BuildConfig before it reaches the generators. The
// generators assume a parseable site URL and do not recover from a bad one.
func Validate(cfg *models.BuildConfig) error {
	if _, err := parseSiteURL(cfg.WebsiteURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		return fmt.Errorf("%w: appName is required", ErrInvalidConfig)
	}
	if !packageIDPattern.MatchString(cfg.PackageID) {
		return fmt.Errorf("%w: packageId %q is not a reverse-DNS identifier", ErrInvalidConfig, cfg.PackageID)
	}
	if len(cfg.Platforms) == 0 {
		return fmt.Errorf("%w: at least one platform is required", ErrInvalidConfig)
	}
	seen := make(map[models.Platform]bool, len(cfg.Platforms))
	for _, p := range cfg.Platforms {
		if p != models.PlatformAndroid && p != models.PlatformIOS {
			return fmt.Errorf("%w: unsupported platform %q", ErrInvalidConfig, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: platform %q listed more than once", ErrInvalidConfig, p)
		}
		seen[p] = true
	}
	if cfg.EnableNavigation {
		switch cfg.NavigationType {
		case "", models.NavigationTabs, models.NavigationDrawer:
		default:
			return fmt.Errorf("%w: unsupported navigationType %q", ErrInvalidConfig, cfg.NavigationType)
		}
	}
	switch cfg.SplashConfig.ResizeMode {
	case "", "contain", "cover", "native":
	default:
		return fmt.Errorf("%w: unsupported splash resizeMode %q", ErrInvalidConfig, cfg.SplashConfig.ResizeMode)
	}
	return nil
}

func parseSiteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebsiteURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidWebsiteURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidWebsiteURL)
	}
	return u, nil
}

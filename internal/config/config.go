// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPortalURL is the public search page of the land-and-mortgage
// register browser.
const DefaultPortalURL = "https://przegladarka-ekw.ms.gov.pl/eukw_prz/KsiegiWieczyste/wyszukiwanieKW?komunikaty=true&kontakt=true&okienkoSerwisowe=false"

// Config holds all runtime settings for the scraper service.
type Config struct {
	// PortalURL is the entry page of the register portal.
	PortalURL string
	// Port is the HTTP listen port for the server.
	Port string
	// MaxConcurrent bounds the number of simultaneous browser sessions.
	MaxConcurrent int

	// NavigationTimeout bounds full page loads.
	NavigationTimeout time.Duration
	// ActionTimeout bounds individual element interactions.
	ActionTimeout time.Duration
	// SectionTimeout bounds the wait for one department's content.
	SectionTimeout time.Duration

	// Headless controls browser visibility; disable for local debugging.
	Headless bool
	// UserAgent is the identity string presented to the portal.
	UserAgent string
	// WindowWidth and WindowHeight set the browser viewport.
	WindowWidth  int
	WindowHeight int

	// ScreenshotDir is where debug-mode checkpoint screenshots are written.
	ScreenshotDir string
}

// Load reads configuration from environment variables (prefix KW_), falling
// back to a .env file when present and to defaults otherwise.
func Load() Config {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("KW")
	v.AutomaticEnv()

	v.SetDefault("portal_url", DefaultPortalURL)
	v.SetDefault("port", "8080")
	v.SetDefault("max_concurrent", 3)
	v.SetDefault("navigation_timeout", "30s")
	v.SetDefault("action_timeout", "15s")
	v.SetDefault("section_timeout", "10s")
	v.SetDefault("headless", true)
	v.SetDefault("user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	v.SetDefault("window_width", 1280)
	v.SetDefault("window_height", 800)
	v.SetDefault("screenshot_dir", "debug")

	return Config{
		PortalURL:         v.GetString("portal_url"),
		Port:              v.GetString("port"),
		MaxConcurrent:     v.GetInt("max_concurrent"),
		NavigationTimeout: v.GetDuration("navigation_timeout"),
		ActionTimeout:     v.GetDuration("action_timeout"),
		SectionTimeout:    v.GetDuration("section_timeout"),
		Headless:          v.GetBool("headless"),
		UserAgent:         v.GetString("user_agent"),
		WindowWidth:       v.GetInt("window_width"),
		WindowHeight:      v.GetInt("window_height"),
		ScreenshotDir:     v.GetString("screenshot_dir"),
	}
}

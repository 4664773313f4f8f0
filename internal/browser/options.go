// Package browser owns the browser engine: session lifecycle, rendering
// surfaces (top-level page and embedded frames), and the interaction
// primitives the navigation layer is built on.
package browser

import (
	"time"

	"github.com/chromedp/chromedp"
)

// Config describes one browser session. A fresh session is created per
// lookup and torn down at its end; nothing is shared across lookups.
type Config struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int

	// NavigationTimeout bounds full page loads, ActionTimeout individual
	// element interactions.
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration

	// ScreenshotDir receives debug checkpoint captures when set.
	ScreenshotDir string
}

// DefaultConfig returns the settings used when the caller provides none.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		WindowWidth:       1280,
		WindowHeight:      800,
		NavigationTimeout: 30 * time.Second,
		ActionTimeout:     15 * time.Second,
	}
}

// BuildChromeOptions creates the allocator options for a session. The
// automation-masking flags keep the portal from serving the degraded
// bot-detection page.
func BuildChromeOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		// The portal localizes its error messages; keep them Polish so the
		// not-found markers match.
		chromedp.Flag("lang", "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7"),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	return opts
}

// stealthScript hides the usual automation tells before any portal script
// runs. Injected on every new document.
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
		configurable: true
	});
	delete navigator.webdriver;

	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
		configurable: true
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ['pl-PL', 'pl', 'en-US', 'en'],
		configurable: true
	});

	window.chrome = window.chrome || { runtime: {} };
`

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// Session owns one browser instance and its top-level page for the duration
// of a single lookup. Release is idempotent and safe to call on a broken
// session; it is always invoked, including on failure paths.
type Session struct {
	cfg    Config
	logger *slog.Logger

	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc

	releaseOnce sync.Once
}

// Acquire starts a browser and opens a blank page. It fails fast with a
// SessionInitError when the engine cannot start, before any portal contact.
func Acquire(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, BuildChromeOptions(cfg)...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}

	// The browser process only launches on the first action; run one now so
	// a broken engine is reported before any page interaction.
	startCtx, cancel := context.WithTimeout(browserCtx, cfg.NavigationTimeout)
	defer cancel()
	err := chromedp.Run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		s.Release()
		return nil, &models.SessionInitError{Err: err}
	}

	logger.Debug("browser session acquired")
	return s, nil
}

// Release tears the session down. Safe to call multiple times and on a
// session whose browser already died.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		if s.cancelCtx != nil {
			s.cancelCtx()
		}
		if s.cancelAlloc != nil {
			s.cancelAlloc()
		}
		if s.logger != nil {
			s.logger.Debug("browser session released")
		}
	})
}

// Navigate loads url on the top-level page and waits for the document to be
// ready. Returns a NavigationError on timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := s.run(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &models.NavigationError{URL: url, Err: err}
	}
	return nil
}

// Page returns the top-level rendering surface.
func (s *Session) Page() Surface {
	return &domSurface{sess: s, name: "page", root: "document"}
}

// Surfaces returns every rendering surface of the current document: the
// top-level page followed by each same-origin embedded frame. Cross-origin
// frames whose documents are unreachable are skipped.
func (s *Session) Surfaces(ctx context.Context) []Surface {
	surfaces := []Surface{s.Page()}

	var frames []struct {
		Name      string `json:"name"`
		Src       string `json:"src"`
		Reachable bool   `json:"reachable"`
	}
	js := `Array.from(document.querySelectorAll('iframe')).map(f => {
		let reachable = false;
		try { reachable = !!f.contentDocument; } catch (e) {}
		return { name: f.name || '', src: f.src || '', reachable: reachable };
	})`
	if err := s.Page().Evaluate(ctx, js, &frames); err != nil {
		return surfaces
	}

	for i, f := range frames {
		if !f.Reachable {
			continue
		}
		surfaces = append(surfaces, &domSurface{
			sess:     s,
			name:     fmt.Sprintf("frame[%d] name=%q src=%q", i, f.Name, f.Src),
			root:     fmt.Sprintf("document.querySelectorAll('iframe')[%d].contentDocument", i),
			frameID:  f.Name,
			frameSrc: f.Src,
		})
	}
	return surfaces
}

// Screenshot captures the current viewport into dir/name.png when a
// screenshot directory is configured. Debug aid only; failures are logged
// and swallowed.
func (s *Session) Screenshot(ctx context.Context, name string) {
	if s.cfg.ScreenshotDir == "" {
		return
	}
	shotCtx, cancel := s.run(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		s.logger.Warn("screenshot capture failed", "checkpoint", name, "error", err)
		return
	}
	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0o755); err != nil {
		s.logger.Warn("screenshot dir unavailable", "error", err)
		return
	}
	path := filepath.Join(s.cfg.ScreenshotDir, name+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		s.logger.Warn("screenshot write failed", "path", path, "error", err)
		return
	}
	s.logger.Debug("screenshot saved", "path", path)
}

// ActionTimeout exposes the per-action budget to the primitives layer.
func (s *Session) ActionTimeout() time.Duration { return s.cfg.ActionTimeout }

// run derives a bounded action context from the browser context while
// honoring the caller's cancellation, so an abandoned lookup stops in-flight
// actions while Release still runs.
func (s *Session) run(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	if ctx == nil {
		return runCtx, cancel
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

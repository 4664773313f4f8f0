package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/czlonkowski/kw-scrapper/internal/browser"
	"github.com/czlonkowski/kw-scrapper/internal/config"
	"github.com/czlonkowski/kw-scrapper/internal/extract"
	"github.com/czlonkowski/kw-scrapper/internal/htmlclean"
	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// Options are the per-request knobs of one lookup.
type Options struct {
	// CleanHTML replaces raw section markup with the normalized, structured
	// form. Raw markup is retained only when this is false.
	CleanHTML bool
	// Debug enables checkpoint screenshots.
	Debug bool
}

// DefaultOptions mirror the service defaults: cleaned output, no debug.
func DefaultOptions() Options {
	return Options{CleanHTML: true}
}

// portalSession is the slice of a browser session the orchestrator uses.
// Tests substitute a fake portal behind this interface.
type portalSession interface {
	Navigate(ctx context.Context, url string) error
	Page() browser.Surface
	Surfaces(ctx context.Context) []browser.Surface
	Screenshot(ctx context.Context, name string)
	ActionTimeout() time.Duration
	Release()
}

type acquireFunc func(ctx context.Context, cfg browser.Config, logger *slog.Logger) (portalSession, error)

// Scraper performs register lookups against the portal. One lookup owns one
// browser session; nothing is shared between concurrent lookups.
type Scraper struct {
	cfg     config.Config
	logger  *slog.Logger
	acquire acquireFunc
}

// New creates a Scraper with the given configuration and logger.
func New(cfg config.Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		acquire: func(ctx context.Context, bcfg browser.Config, logger *slog.Logger) (portalSession, error) {
			return browser.Acquire(ctx, bcfg, logger)
		},
	}
}

// Lookup runs one full register lookup. Expected failures (record not
// found, invalid number, portal timeout) come back as a well-formed result
// with Success=false; only a failure to start the browser engine is
// returned as an error.
func (s *Scraper) Lookup(ctx context.Context, key models.LookupKey, opts Options) (*models.LookupResult, error) {
	logger := s.logger.With("kw", key.Identifier())

	if err := key.Validate(); err != nil {
		return models.FailedLookup(key, fmt.Sprintf("invalid lookup key: %v", err)), nil
	}
	if err := VerifyCheckDigit(key); err != nil {
		// The portal is the authority; a mismatch is worth flagging but not
		// worth refusing the lookup over.
		logger.Warn("check digit mismatch", "error", err)
	}

	sess, err := s.acquire(ctx, s.browserConfig(opts), logger)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	logger.Info("browser session acquired")

	if err := sess.Navigate(ctx, s.cfg.PortalURL); err != nil {
		logger.Error("portal load failed", "error", err)
		return models.FailedLookup(key, fmt.Sprintf("failed to load portal: %v", err)), nil
	}
	logger.Info("portal loaded", "url", s.cfg.PortalURL)

	page := sess.Page()
	if opts.Debug {
		sess.Screenshot(ctx, "01_initial_page")
	}

	// Best effort; the banner is not always present.
	acceptCookies(ctx, page, sess.ActionTimeout())

	if err := s.fillSearchForm(ctx, page, key); err != nil {
		logger.Error("search form unavailable", "error", err)
		return models.FailedLookup(key, fmt.Sprintf("search form unavailable: %v", err)), nil
	}
	logger.Info("search form filled")

	if !browser.ClickWithRetry(ctx, page, searchButton, clickAttempts, sess.ActionTimeout(), logger) {
		return models.FailedLookup(key, "could not submit search"), nil
	}

	if !browser.WaitFor(ctx, page, viewContentButton, s.cfg.NavigationTimeout) {
		if opts.Debug {
			sess.Screenshot(ctx, "02_error_page")
		}
		if serr := searchError(ctx, page); serr != nil {
			logger.Info("search rejected by portal", "message", serr.Message)
			return models.FailedLookup(key, serr.Error()), nil
		}
		logger.Error("search results never appeared")
		return models.FailedLookup(key, "timeout waiting for search results"), nil
	}
	if opts.Debug {
		sess.Screenshot(ctx, "02_results_page")
	}
	logger.Info("search results loaded")

	if err := s.openContentView(ctx, sess, key); err != nil {
		logger.Error("content view unreachable", "error", err)
		return models.FailedLookup(key, err.Error()), nil
	}
	if opts.Debug {
		sess.Screenshot(ctx, "03_content_view")
	}

	surface := selectWorkingSurface(ctx, sess, logger)
	sections := s.processDepartments(ctx, sess, surface, opts, logger)

	result := &models.LookupResult{
		Success:  true,
		KWNumber: key.Identifier(),
	}
	for _, code := range models.DepartmentOrder {
		result.SetSection(code, sections[code])
	}
	logger.Info("lookup completed")
	return result, nil
}

// browserConfig maps service configuration onto one session's settings.
func (s *Scraper) browserConfig(opts Options) browser.Config {
	bcfg := browser.Config{
		Headless:          s.cfg.Headless,
		UserAgent:         s.cfg.UserAgent,
		WindowWidth:       s.cfg.WindowWidth,
		WindowHeight:      s.cfg.WindowHeight,
		NavigationTimeout: s.cfg.NavigationTimeout,
		ActionTimeout:     s.cfg.ActionTimeout,
	}
	if opts.Debug {
		bcfg.ScreenshotDir = s.cfg.ScreenshotDir
	}
	return bcfg
}

// fillSearchForm enters the three key parts. The register number is
// submitted without leading zeros; the canonical identifier keeps them.
func (s *Scraper) fillSearchForm(ctx context.Context, page browser.Surface, key models.LookupKey) error {
	timeout := s.cfg.ActionTimeout
	if err := browser.FillField(ctx, page, departmentCodeInput, key.DepartmentCode, timeout); err != nil {
		return err
	}
	if err := browser.FillField(ctx, page, registerNumberInput, key.SearchNumber(), timeout); err != nil {
		return err
	}
	return browser.FillField(ctx, page, checkDigitInput, key.CheckDigit, timeout)
}

// processDepartments walks the five sections strictly in order. A section
// that fails stays in the result as a document carrying its own extraction
// error. When not a single department control can be located the page
// layout is assumed to have changed and the whole body is handed to every
// extractor instead.
func (s *Scraper) processDepartments(ctx context.Context, sess portalSession, surface browser.Surface, opts Options, logger *slog.Logger) map[string]*models.SectionDocument {
	sections := make(map[string]*models.SectionDocument, len(departments))
	located := 0

	for i, dept := range departments {
		doc, found := s.processDepartment(ctx, sess, surface, dept, opts, logger)
		if found {
			located++
		}
		sections[dept.Code] = doc
		if opts.Debug {
			sess.Screenshot(ctx, fmt.Sprintf("04_%d_%s", i+1, dept.Code))
		}
	}

	if located == 0 {
		logger.Warn("no department controls found, extracting page body for all sections")
		body := browser.ExtractHTML(ctx, surface, "body")
		for _, dept := range departments {
			sections[dept.Code] = buildSectionDocument(body, dept.Code, opts.CleanHTML)
		}
	}
	return sections
}

// processDepartment opens one section and extracts it. The returned flag
// reports whether the section's control could be located at all.
func (s *Scraper) processDepartment(ctx context.Context, sess portalSession, surface browser.Surface, dept department, opts Options, logger *slog.Logger) (*models.SectionDocument, bool) {
	selector, found := locateDepartmentControl(ctx, surface, dept.Label)
	if !found {
		logger.Warn("department control not found", "department", dept.Label)
		return models.FailedSection(fmt.Sprintf("control not found for %s", dept.Label)), false
	}

	if !browser.ClickWithRetry(ctx, surface, selector, clickAttempts, sess.ActionTimeout(), logger) {
		logger.Warn("department control unclickable", "department", dept.Label)
		return models.FailedSection(fmt.Sprintf("could not open %s", dept.Label)), true
	}

	raw := ""
	if browser.WaitFor(ctx, surface, departmentContentRegion, s.cfg.SectionTimeout) {
		raw = browser.ExtractHTML(ctx, surface, departmentContentRegion)
	}
	if raw == "" {
		raw = browser.ExtractHTML(ctx, surface, "body")
	}

	logger.Info("department processed", "department", dept.Label)
	return buildSectionDocument(raw, dept.Code, opts.CleanHTML), true
}

// buildSectionDocument normalizes the markup, extracts the structured form,
// and retains the raw markup only when cleaning was not requested.
func buildSectionDocument(rawHTML, code string, clean bool) *models.SectionDocument {
	doc := extract.ForDepartment(code).Extract(htmlclean.Clean(rawHTML))
	if !clean {
		doc.RawHTML = rawHTML
	}
	return doc
}

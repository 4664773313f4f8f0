package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/czlonkowski/kw-scrapper/internal/browser"
	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// contentStrategy is one way of reaching the register content view. The
// orchestrator tries strategies in order; the first that lands on a
// recognized content indicator short-circuits the rest.
type contentStrategy interface {
	Name() string
	Attempt(ctx context.Context, sess portalSession) bool
}

// openContentView reaches the register detail view, falling back through
// progressively blunter strategies. Exhausting all of them is terminal for
// the lookup.
func (s *Scraper) openContentView(ctx context.Context, sess portalSession, key models.LookupKey) error {
	strategies := []contentStrategy{
		fixedControlStrategy{logger: s.logger},
		textScanStrategy{logger: s.logger},
		// Optional hardening below: address reconstruction and a full
		// reload-and-resubmit, for the days the portal moves its buttons.
		directAddressStrategy{},
		resubmitStrategy{scraper: s, key: key},
	}

	for _, strategy := range strategies {
		s.logger.Debug("trying content strategy", "strategy", strategy.Name())
		if !strategy.Attempt(ctx, sess) {
			continue
		}
		if contentReached(ctx, sess) {
			s.logger.Info("content view opened", "strategy", strategy.Name())
			return nil
		}
	}
	return &models.UnrecoverableNavigationError{Stage: "content view", Attempts: len(strategies)}
}

// contentReached checks every rendering surface for a content indicator.
func contentReached(ctx context.Context, sess portalSession) bool {
	for _, surface := range sess.Surfaces(ctx) {
		for _, marker := range contentMarkers {
			if surface.Exists(ctx, marker) {
				return true
			}
		}
	}
	return false
}

// fixedControlStrategy clicks the view-content control by its identifier.
type fixedControlStrategy struct {
	logger *slog.Logger
}

func (fixedControlStrategy) Name() string { return "fixed-selector" }

func (f fixedControlStrategy) Attempt(ctx context.Context, sess portalSession) bool {
	return browser.ClickWithRetry(ctx, sess.Page(), viewContentButton, clickAttempts, sess.ActionTimeout(), f.logger)
}

// textScanStrategy scans all interactive elements for a semantic match on
// the control's caption.
type textScanStrategy struct {
	logger *slog.Logger
}

func (textScanStrategy) Name() string { return "interactive-scan" }

func (t textScanStrategy) Attempt(ctx context.Context, sess portalSession) bool {
	page := sess.Page()
	if !markByText(ctx, page, contentViewTexts) {
		return false
	}
	return browser.ClickWithRetry(ctx, page, markedSelector, clickAttempts, sess.ActionTimeout(), t.logger)
}

// directAddressStrategy reconstructs the detail view's address from the
// current location. The portal keeps the session server-side, so landing on
// the viewer path directly works when its buttons do not.
type directAddressStrategy struct{}

func (directAddressStrategy) Name() string { return "direct-address" }

func (directAddressStrategy) Attempt(ctx context.Context, sess portalSession) bool {
	var href string
	if err := sess.Page().Evaluate(ctx, "window.location.href", &href); err != nil || href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil || !strings.Contains(u.Path, "wyszukiwanieKW") {
		return false
	}
	u.Path = strings.Replace(u.Path, "wyszukiwanieKW", "pokazWydruk", 1)
	u.RawQuery = ""
	return sess.Navigate(ctx, u.String()) == nil
}

// resubmitStrategy reloads the portal and replays the whole search.
type resubmitStrategy struct {
	scraper *Scraper
	key     models.LookupKey
}

func (resubmitStrategy) Name() string { return "reload-resubmit" }

func (r resubmitStrategy) Attempt(ctx context.Context, sess portalSession) bool {
	s := r.scraper
	if err := sess.Navigate(ctx, s.cfg.PortalURL); err != nil {
		return false
	}
	page := sess.Page()
	acceptCookies(ctx, page, sess.ActionTimeout())
	if err := s.fillSearchForm(ctx, page, r.key); err != nil {
		return false
	}
	if !browser.ClickWithRetry(ctx, page, searchButton, clickAttempts, sess.ActionTimeout(), s.logger) {
		return false
	}
	if !browser.WaitFor(ctx, page, viewContentButton, s.cfg.NavigationTimeout) {
		return false
	}
	return browser.ClickWithRetry(ctx, page, viewContentButton, clickAttempts, sess.ActionTimeout(), s.logger)
}

// selectWorkingSurface picks the frame whose name or address matches a
// known content marker; the main page is used unchanged when none does.
func selectWorkingSurface(ctx context.Context, sess portalSession, logger *slog.Logger) browser.Surface {
	surfaces := sess.Surfaces(ctx)
	for _, surface := range surfaces[1:] {
		for _, marker := range frameMarkers {
			if surface.Matches(marker) {
				logger.Info("content renders in frame", "surface", surface.Name())
				return surface
			}
		}
	}
	return surfaces[0]
}

// locateDepartmentControl finds the clickable element for one department,
// trying buttons, links, images, then arbitrary short-text elements. It
// returns a selector addressing the marked element.
func locateDepartmentControl(ctx context.Context, surface browser.Surface, label string) (string, bool) {
	// The fixed control is an input button whose value is the department
	// label.
	fixed := fmt.Sprintf("input[value='%s']", label)
	if surface.Exists(ctx, fixed) {
		return fixed, true
	}
	if markByText(ctx, surface, []string{label}) {
		return markedSelector, true
	}
	return "", false
}

// markedSelector addresses the element most recently tagged by markByText.
const markedSelector = "[" + markerAttr + "]"

// markGroups is the element preference order for text scans: buttons, then
// links, then images, then anything with a short caption.
var markGroups = []string{
	"input[type='button'], input[type='submit'], button",
	"a",
	"img",
	"*",
}

// markByText tags the first element whose caption matches one of texts so
// it can be addressed through the click primitives. Exact caption matches
// win over substring matches; substring matching is limited to short
// captions so container elements never swallow the scan.
func markByText(ctx context.Context, surface browser.Surface, texts []string) bool {
	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return false
	}
	groupsJSON, err := json.Marshal(markGroups)
	if err != nil {
		return false
	}

	js := fmt.Sprintf(`(() => {
		const texts = %s.map(t => t.trim().toLowerCase());
		const groups = %s;
		document.querySelectorAll('[%s]').forEach(el => el.removeAttribute('%s'));
		const caption = el => ((el.value || '') + ' ' + (el.alt || '') + ' ' + (el.title || '') + ' ' + (el.textContent || '')).trim().toLowerCase();
		for (const pass of ['exact', 'contains']) {
			for (const group of groups) {
				for (const el of Array.from(document.querySelectorAll(group))) {
					const c = caption(el);
					if (pass === 'contains' && c.length > 80) { continue; }
					for (const t of texts) {
						if ((pass === 'exact' && c === t) || (pass === 'contains' && c.includes(t))) {
							el.setAttribute('%s', '1');
							return true;
						}
					}
				}
			}
		}
		return false;
	})()`, textsJSON, groupsJSON, markerAttr, markerAttr, markerAttr)

	var marked bool
	if err := surface.Evaluate(ctx, js, &marked); err != nil {
		return false
	}
	return marked
}

// searchError collects the portal's error box contents after a failed
// search, falling back to the not-found marker in the page text. Returns nil
// when no error is displayed.
func searchError(ctx context.Context, page browser.Surface) *models.SearchError {
	var messages []string
	for _, selector := range errorSelectors {
		if text := browser.ExtractText(ctx, page, selector); text != "" {
			messages = append(messages, text)
		}
	}
	if len(messages) > 0 {
		return &models.SearchError{Message: strings.Join(messages, " | ")}
	}

	body := browser.ExtractText(ctx, page, "body")
	if strings.Contains(strings.ToLower(body), notFoundMarker) {
		return &models.SearchError{Message: "księga wieczysta nie została odnaleziona"}
	}
	return nil
}

// acceptCookies dismisses the consent banner when present. Best effort: a
// missing banner or failed click never aborts the lookup.
func acceptCookies(ctx context.Context, page browser.Surface, timeout time.Duration) {
	for _, selector := range cookieSelectors {
		if page.IsVisible(ctx, selector) {
			browser.ClickWithRetry(ctx, page, selector, 1, timeout, nil)
			return
		}
	}
	if markByText(ctx, page, cookieTexts) {
		browser.ClickWithRetry(ctx, page, markedSelector, 1, timeout, nil)
	}
}

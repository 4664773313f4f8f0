package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/czlonkowski/kw-scrapper/internal/browser"
	"github.com/czlonkowski/kw-scrapper/internal/config"
	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// fakePortal is an in-memory rendition of the register portal: a state
// machine the fake surfaces and session consult, so lookups run end to end
// without a browser.
type fakePortal struct {
	mu sync.Mutex

	state          string // "search", "results", "error", "content"
	currentSection string // department label whose content is showing

	href      string
	errorText string
	bodyText  string
	bodyHTML  string
	sections  map[string]string // department label -> section markup

	failSearch         bool // search ends on the error page
	hideViewButton     bool // fixed content-view control absent
	viewCaptionPresent bool // content-view control findable by caption only
	noDeptControls     bool // no department control renders at all
	missingDepts       map[string]bool

	filled      map[string]string
	navigations []string
	marked      string
}

func newFakePortal() *fakePortal {
	sections := make(map[string]string, len(departments))
	for _, dept := range departments {
		sections[dept.Label] = sectionFixture(dept.Label)
	}
	return &fakePortal{
		state:        "search",
		href:         "https://portal.example/eukw_prz/KsiegiWieczyste/wyszukiwanieKW?komunikaty=true",
		sections:     sections,
		missingDepts: make(map[string]bool),
		filled:       make(map[string]string),
	}
}

func sectionFixture(label string) string {
	html := fmt.Sprintf(`<table class="tbOdpis">
<tr><td class="csTTytul">%s - TREŚĆ</td></tr>
<tr><td class="csDane">Numer księgi</td><td class="csBDane">WA1M / 00533284 / 3</td></tr>
</table>`, strings.ToUpper(label))
	if label == "Dział II" {
		html += `<table><tr><td>1.</td></tr>
<tr><td class="csDane">JAN KOWALSKI, 75010112345, udział 1/1</td></tr></table>`
	}
	return html
}

// captions lists the element captions currently findable by a text scan.
func (p *fakePortal) captions() []string {
	var out []string
	if p.state == "results" && p.viewCaptionPresent {
		out = append(out, contentViewTexts[0])
	}
	if p.state == "content" && !p.noDeptControls {
		for _, dept := range departments {
			if !p.missingDepts[dept.Label] {
				out = append(out, dept.Label)
			}
		}
	}
	return out
}

func departmentLabel(selector string) (string, bool) {
	rest, ok := strings.CutPrefix(selector, "input[value='")
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(rest, "']"), true
}

// fakeSurface renders the fake portal's state through the Surface interface.
type fakeSurface struct {
	portal  *fakePortal
	name    string
	frameID string
}

func (f *fakeSurface) Name() string { return f.name }

func (f *fakeSurface) Matches(marker string) bool {
	return f.frameID != "" && strings.Contains(strings.ToLower(f.frameID), strings.ToLower(marker))
}

func (f *fakeSurface) Evaluate(_ context.Context, js string, out any) error {
	p := f.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case strings.Contains(js, "readyState"):
		if s, ok := out.(*string); ok {
			*s = "complete"
		}
	case strings.Contains(js, "window.location.href"):
		if s, ok := out.(*string); ok {
			*s = p.href
		}
	case strings.Contains(js, markerAttr):
		marked := false
		for _, caption := range p.captions() {
			if strings.Contains(js, `"`+caption+`"`) {
				p.marked = caption
				marked = true
				break
			}
		}
		if b, ok := out.(*bool); ok {
			*b = marked
		}
	}
	return nil
}

func (f *fakeSurface) Exists(_ context.Context, selector string) bool {
	p := f.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	if label, ok := departmentLabel(selector); ok {
		return p.state == "content" && !p.noDeptControls && !p.missingDepts[label]
	}
	switch selector {
	case viewContentButton:
		return p.state == "results" && !p.hideViewButton
	case departmentContentRegion:
		return p.currentSection != ""
	case "td.csTTytul":
		return p.state == "content"
	case markedSelector:
		return p.marked != ""
	case departmentCodeInput, registerNumberInput, checkDigitInput, searchButton:
		return true
	}
	for _, errSel := range errorSelectors {
		if selector == errSel {
			return p.errorText != ""
		}
	}
	return false
}

func (f *fakeSurface) IsVisible(ctx context.Context, selector string) bool {
	return f.Exists(ctx, selector)
}

func (f *fakeSurface) Click(_ context.Context, selector string) error {
	p := f.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	if label, ok := departmentLabel(selector); ok {
		p.currentSection = label
		return nil
	}
	switch selector {
	case searchButton:
		if p.failSearch {
			p.state = "error"
		} else {
			p.state = "results"
		}
		return nil
	case viewContentButton:
		p.state = "content"
		return nil
	case markedSelector:
		switch {
		case p.marked == contentViewTexts[0]:
			p.state = "content"
		case p.marked != "":
			p.currentSection = p.marked
		}
		return nil
	}
	return &models.ElementNotFoundError{Selector: selector}
}

func (f *fakeSurface) Fill(_ context.Context, selector, value string) error {
	f.portal.mu.Lock()
	defer f.portal.mu.Unlock()
	f.portal.filled[selector] = value
	return nil
}

func (f *fakeSurface) InnerHTML(_ context.Context, selector string) string {
	p := f.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	switch selector {
	case departmentContentRegion:
		return p.sections[p.currentSection]
	case "body":
		return p.bodyHTML
	}
	return ""
}

func (f *fakeSurface) InnerText(_ context.Context, selector string) string {
	p := f.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	if selector == "body" {
		return p.bodyText
	}
	if selector == errorSelectors[0] {
		return p.errorText
	}
	return ""
}

type fakeSession struct {
	portal   *fakePortal
	page     browser.Surface
	frames   []browser.Surface
	released bool
	shots    []string
}

func newFakeSession(portal *fakePortal) *fakeSession {
	return &fakeSession{
		portal: portal,
		page:   &fakeSurface{portal: portal, name: "page"},
	}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	p := s.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	if strings.Contains(url, "pokazWydruk") {
		p.state = "content"
	} else {
		p.state = "search"
	}
	return nil
}

func (s *fakeSession) Page() browser.Surface { return s.page }

func (s *fakeSession) Surfaces(_ context.Context) []browser.Surface {
	return append([]browser.Surface{s.page}, s.frames...)
}

func (s *fakeSession) Screenshot(_ context.Context, name string) { s.shots = append(s.shots, name) }

func (s *fakeSession) ActionTimeout() time.Duration { return 100 * time.Millisecond }

func (s *fakeSession) Release() { s.released = true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScraper(sess *fakeSession) *Scraper {
	cfg := config.Config{
		PortalURL:         "https://portal.example/eukw_prz/KsiegiWieczyste/wyszukiwanieKW?komunikaty=true",
		NavigationTimeout: 300 * time.Millisecond,
		ActionTimeout:     100 * time.Millisecond,
		SectionTimeout:    200 * time.Millisecond,
	}
	s := New(cfg, testLogger())
	s.acquire = func(context.Context, browser.Config, *slog.Logger) (portalSession, error) {
		return sess, nil
	}
	return s
}

func testKey() models.LookupKey {
	return models.LookupKey{DepartmentCode: "WA1M", RegisterNumber: "00533284", CheckDigit: "3"}
}

func TestLookupSuccess(t *testing.T) {
	portal := newFakePortal()
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if result.KWNumber != "WA1M/00533284/3" {
		t.Fatalf("KWNumber = %q", result.KWNumber)
	}

	for _, dept := range departments {
		doc := result.Section(dept.Code)
		if doc == nil {
			t.Fatalf("section %s missing", dept.Code)
		}
		if doc.ExtractionError != "" {
			t.Errorf("section %s: extraction error %q", dept.Code, doc.ExtractionError)
		}
		wantTitle := strings.ToUpper(dept.Label) + " - TREŚĆ"
		if doc.Title != wantTitle {
			t.Errorf("section %s: Title = %q, want %q", dept.Code, doc.Title, wantTitle)
		}
		if doc.RawHTML != "" {
			t.Errorf("section %s: raw markup retained despite cleaning", dept.Code)
		}
	}

	// The leading zeros are stripped for the form but kept in the result.
	if got := portal.filled[registerNumberInput]; got != "533284" {
		t.Errorf("register number submitted as %q, want 533284", got)
	}
	if got := portal.filled[departmentCodeInput]; got != "WA1M" {
		t.Errorf("department code submitted as %q", got)
	}
	if got := portal.filled[checkDigitInput]; got != "3" {
		t.Errorf("check digit submitted as %q", got)
	}

	// Dział II goes through the ownership path.
	owners := result.Section(models.DzialII).Tables
	if len(owners) != 1 {
		t.Fatalf("Dział II owner records = %d, want 1", len(owners))
	}
	if id, _ := owners[0].Get("national_id"); id != "75010112345" {
		t.Errorf("owner national_id = %q", id)
	}

	if !sess.released {
		t.Error("session was not released")
	}
}

func TestLookupRawHTMLRetainedWhenNotCleaning(t *testing.T) {
	portal := newFakePortal()
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), Options{CleanHTML: false})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	doc := result.Section(models.DzialIO)
	if doc == nil || doc.RawHTML == "" {
		t.Fatal("raw markup must be retained when cleaning is off")
	}
	if !strings.Contains(doc.RawHTML, "csTTytul") {
		t.Fatalf("RawHTML = %q", doc.RawHTML)
	}
}

func TestLookupRecordNotFound(t *testing.T) {
	portal := newFakePortal()
	portal.failSearch = true
	portal.errorText = "Księga wieczysta WA1M/00533284/3 nie została odnaleziona."
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Success {
		t.Fatal("Success = true for a missing record")
	}
	if !strings.Contains(result.Error, "nie została odnaleziona") {
		t.Fatalf("Error = %q", result.Error)
	}
	for _, dept := range departments {
		if result.Section(dept.Code) != nil {
			t.Errorf("failed lookup must not carry section %s", dept.Code)
		}
	}
	if !sess.released {
		t.Error("session was not released")
	}
}

func TestLookupNotFoundMarkerInBody(t *testing.T) {
	portal := newFakePortal()
	portal.failSearch = true
	portal.bodyText = "Księga wieczysta o numerze WA1M/00533284/3 nie została odnaleziona w bazie."
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Success || result.Error != "księga wieczysta nie została odnaleziona" {
		t.Fatalf("Success = %v, Error = %q", result.Success, result.Error)
	}
}

func TestLookupSearchTimeout(t *testing.T) {
	portal := newFakePortal()
	portal.failSearch = true // error page, but with no message anywhere
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Success || result.Error != "timeout waiting for search results" {
		t.Fatalf("Success = %v, Error = %q", result.Success, result.Error)
	}
}

func TestLookupInvalidKey(t *testing.T) {
	s := newTestScraper(newFakeSession(newFakePortal()))
	s.acquire = func(context.Context, browser.Config, *slog.Logger) (portalSession, error) {
		t.Fatal("a browser session must not be acquired for an invalid key")
		return nil, nil
	}

	result, err := s.Lookup(context.Background(), models.LookupKey{DepartmentCode: "WA1M"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "invalid lookup key") {
		t.Fatalf("Success = %v, Error = %q", result.Success, result.Error)
	}
}

func TestLookupSessionInitFailure(t *testing.T) {
	s := newTestScraper(newFakeSession(newFakePortal()))
	s.acquire = func(context.Context, browser.Config, *slog.Logger) (portalSession, error) {
		return nil, &models.SessionInitError{Err: errors.New("chrome not found")}
	}

	_, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	var initErr *models.SessionInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("err = %v, want SessionInitError", err)
	}
}

func TestLookupContainsDepartmentFailure(t *testing.T) {
	portal := newFakePortal()
	portal.missingDepts["Dział III"] = true
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !result.Success {
		t.Fatalf("a single failed section must not fail the lookup: %q", result.Error)
	}

	third := result.Section(models.DzialIII)
	if third == nil || third.ExtractionError == "" {
		t.Fatal("Dział III must carry its own extraction error")
	}
	if !strings.Contains(third.ExtractionError, "Dział III") {
		t.Errorf("ExtractionError = %q", third.ExtractionError)
	}

	for _, code := range []string{models.DzialIO, models.DzialISp, models.DzialII, models.DzialIV} {
		doc := result.Section(code)
		if doc == nil || doc.ExtractionError != "" {
			t.Errorf("section %s affected by the Dział III failure", code)
		}
	}
}

func TestLookupDegradedWholeBodyExtraction(t *testing.T) {
	portal := newFakePortal()
	portal.noDeptControls = true
	portal.bodyHTML = sectionFixture("Dział I-O")
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	result, err := s.Lookup(context.Background(), testKey(), DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !result.Success {
		t.Fatalf("degraded extraction must still succeed: %q", result.Error)
	}
	for _, dept := range departments {
		doc := result.Section(dept.Code)
		if doc == nil {
			t.Fatalf("section %s missing", dept.Code)
		}
		if doc.Title != "DZIAŁ I-O - TREŚĆ" {
			t.Errorf("section %s: Title = %q, want body content", dept.Code, doc.Title)
		}
	}
}

func TestOpenContentViewFallsBackToTextScan(t *testing.T) {
	portal := newFakePortal()
	portal.state = "results"
	portal.hideViewButton = true
	portal.viewCaptionPresent = true
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	if err := s.openContentView(context.Background(), sess, testKey()); err != nil {
		t.Fatalf("openContentView: %v", err)
	}
	if portal.state != "content" {
		t.Fatalf("portal state = %q, want content", portal.state)
	}
}

func TestOpenContentViewFallsBackToDirectAddress(t *testing.T) {
	portal := newFakePortal()
	portal.state = "results"
	portal.hideViewButton = true
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	if err := s.openContentView(context.Background(), sess, testKey()); err != nil {
		t.Fatalf("openContentView: %v", err)
	}
	last := portal.navigations[len(portal.navigations)-1]
	if !strings.Contains(last, "pokazWydruk") {
		t.Fatalf("last navigation = %q, want the reconstructed viewer address", last)
	}
	if strings.Contains(last, "komunikaty") {
		t.Fatalf("query string must be dropped: %q", last)
	}
	if portal.state != "content" {
		t.Fatalf("portal state = %q, want content", portal.state)
	}
}

func TestOpenContentViewExhaustionIsTerminal(t *testing.T) {
	portal := newFakePortal()
	portal.state = "results"
	portal.hideViewButton = true
	portal.href = "about:blank" // address reconstruction has nothing to work with
	sess := newFakeSession(portal)
	s := newTestScraper(sess)

	err := s.openContentView(context.Background(), sess, testKey())
	var navErr *models.UnrecoverableNavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("err = %v, want UnrecoverableNavigationError", err)
	}
}

func TestSelectWorkingSurfacePrefersMatchingFrame(t *testing.T) {
	portal := newFakePortal()
	sess := newFakeSession(portal)
	frame := &fakeSurface{portal: portal, name: "frame[0]", frameID: "frameTrescKW"}
	sess.frames = []browser.Surface{frame}

	surface := selectWorkingSurface(context.Background(), sess, testLogger())
	if surface.Name() != "frame[0]" {
		t.Fatalf("selected surface %q, want the content frame", surface.Name())
	}
}

func TestSelectWorkingSurfaceDefaultsToPage(t *testing.T) {
	sess := newFakeSession(newFakePortal())
	surface := selectWorkingSurface(context.Background(), sess, testLogger())
	if surface.Name() != "page" {
		t.Fatalf("selected surface %q, want page", surface.Name())
	}
}

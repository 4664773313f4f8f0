// Package scraper drives the register portal: it submits the lookup form,
// recovers from the portal's unstable navigation, walks the five department
// sections in order, and assembles the structured result.
package scraper

import "github.com/czlonkowski/kw-scrapper/internal/models"

// Search form selectors.
const (
	departmentCodeInput = "#kodWydzialuInput"
	registerNumberInput = "#numerKsiegiWieczystej"
	checkDigitInput     = "#cyfraKontrolna"
	searchButton        = "#wyszukaj"
)

// viewContentButton opens the "current register content" view and doubles
// as the results indicator after a successful search.
const viewContentButton = "#przyciskWydrukZwykly"

// Selectors that carry the portal's search error messages.
var errorSelectors = []string{
	".error:not(.hide)",
	".error-message",
	"#errorMessageBox",
}

// notFoundMarker appears in the page text when the register does not exist.
const notFoundMarker = "nie została odnaleziona"

// contentMarkers indicate that navigation reached the register detail view.
var contentMarkers = []string{
	"input[value='Dział I-O']",
	"#contentDzialu",
	"td.csTTytul",
}

// frameMarkers select the working surface when the portal renders content
// into an embedded frame.
var frameMarkers = []string{
	"pokazWydruk",
	"eukw",
	"tresc",
}

// departmentContentRegion is the dedicated container for one department's
// markup; the page body is the fallback when it is absent.
const departmentContentRegion = "#contentDzialu"

// department describes one fixed legal section of a register.
type department struct {
	Code  string
	Label string
}

// departments in the fixed processing order. Each is clicked and awaited in
// turn; they mutate shared page state, so the order never changes.
var departments = []department{
	{Code: models.DzialIO, Label: "Dział I-O"},
	{Code: models.DzialISp, Label: "Dział I-Sp"},
	{Code: models.DzialII, Label: "Dział II"},
	{Code: models.DzialIII, Label: "Dział III"},
	{Code: models.DzialIV, Label: "Dział IV"},
}

// contentViewTexts identify the content-opening control when its fixed
// identifier is gone.
var contentViewTexts = []string{
	"Przeglądanie aktualnej treści KW",
	"aktualnej treści",
}

// cookieSelectors are tried in order when dismissing the consent banner.
var cookieSelectors = []string{
	".cookie-consent button",
	"#cookie-consent button",
	".cookies-consent button",
	"#cookies-consent button",
	".cookie-notice button",
	"#cookie-notice button",
	"#cookies-modal button",
	"div[id*='cookie'] button",
	"div[class*='cookie'] button",
}

// cookieTexts are the accept-button captions scanned when no known selector
// matches.
var cookieTexts = []string{"akceptuj", "zaakceptuj", "zgadzam", "zgoda", "accept"}

// clickAttempts bounds the retry loop of every recovery-relevant click.
const clickAttempts = 3

// markerAttr is the temporary attribute used to address elements found by
// text scan through the click primitives.
const markerAttr = "data-kw-target"

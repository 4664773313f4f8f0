package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// Dział II does not follow the tabular convention of the other departments:
// owners appear as free-text cells carrying an 11-digit national identifier
// and the ownership-share marker. This asymmetry is intentional and kept as
// its own path.

const (
	// shareMarker is the fixed membership marker present in every
	// ownership cell.
	shareMarker = "udział"
	// positionLookback bounds the backward walk for a position number.
	positionLookback = 5
)

var (
	nationalIDRe = regexp.MustCompile(`\b(\d{11})\b`)
	positionRe   = regexp.MustCompile(`^(\d+)\.?$`)
)

// ownershipExtractor extends the generic extraction with owner-record
// scanning for Dział II.
type ownershipExtractor struct{}

func (ownershipExtractor) Extract(rawHTML string) *models.SectionDocument {
	doc := models.NewSectionDocument()
	gq := parseSection(doc, rawHTML)
	if gq == nil {
		return doc
	}
	extractOwners(doc, gq)
	return doc
}

// extractOwners scans every cell for the national-identifier-plus-marker
// pattern and emits one owner record per matching cell, backfilling the
// position number from the nearest preceding marked row.
func extractOwners(doc *models.SectionDocument, gq *goquery.Document) {
	defer func() {
		if r := recover(); r != nil {
			doc.ExtractionError = "ownership parse failed"
		}
	}()

	var rows []*goquery.Selection
	gq.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, row)
	})

	for i, row := range rows {
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			text := cleanText(cell.Text())
			if !strings.Contains(strings.ToLower(text), shareMarker) {
				return
			}
			match := nationalIDRe.FindStringSubmatch(text)
			if match == nil {
				return
			}

			owner := models.NewOrderedMap()
			if pos := findPositionNumber(rows, i); pos != "" {
				owner.Set("position", pos)
			}
			owner.Set("owner", text)
			owner.Set("national_id", match[1])
			doc.Tables = append(doc.Tables, owner)
		})
	}
}

// findPositionNumber walks backward through preceding sibling rows, bounded
// by positionLookback, for a row whose leading cell is a bare ordinal.
func findPositionNumber(rows []*goquery.Selection, from int) string {
	for i := from; i >= 0 && from-i <= positionLookback; i-- {
		first := rows[i].Find("td").First()
		if first.Length() == 0 {
			continue
		}
		text := cleanText(first.Text())
		if m := positionRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// basisTableTitle marks the legal basis table in any department.
const basisTableTitle = "DOKUMENTY BĘDĄCE PODSTAWĄ WPISU"

// ExtractDocumentBasis locates the legal basis table and walks its rows: a
// cell with a rowspan attribute opens a new entry (basis number), the
// following cell carries the document description, and a plain cell in a
// subsequent row the journal info. The entry closes when the next rowspan
// cell begins.
func ExtractDocumentBasis(gq *goquery.Document) []models.BasisEntry {
	var basisTable *goquery.Selection
	gq.Find(titleCellSelector).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if strings.Contains(cell.Text(), basisTableTitle) {
			basisTable = cell.Closest("table")
			return false
		}
		return true
	})
	if basisTable == nil {
		return nil
	}

	var entries []models.BasisEntry
	var current *models.BasisEntry

	basisTable.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find(titleCellSelector).Length() > 0 {
			return
		}

		numberCell := row.Find("td[rowspan]").First()
		if numberCell.Length() > 0 {
			if current != nil {
				entries = append(entries, *current)
			}
			current = &models.BasisEntry{
				BasisNumber: cleanText(numberCell.Text()),
			}
			if desc := row.Find("td.csNDBDane").First(); desc.Length() > 0 {
				current.DocumentDescription = cleanText(desc.Text())
			} else if next := numberCell.Next(); next.Length() > 0 {
				current.DocumentDescription = cleanText(next.Text())
			}
			return
		}

		if current == nil || current.JournalInfo != "" {
			return
		}
		if journal := row.Find(fieldKeySelector + ":not([rowspan])").First(); journal.Length() > 0 {
			current.JournalInfo = cleanText(journal.Text())
		}
	})

	if current != nil {
		entries = append(entries, *current)
	}
	return entries
}

// Package extract turns raw department markup into structured section
// documents. Four departments share a generic table layout; Dział II renders
// ownership as free-text cells and gets its own extraction path.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/czlonkowski/kw-scrapper/internal/htmlclean"
	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// Extraction marker classes used by the portal's section markup.
const (
	titleCellSelector  = "td.csTTytul"
	dataTableSelector  = "table.tabela-dane"
	fieldTableSelector = "table.tbOdpis"
	fieldKeySelector   = "td.csDane"
	fieldValueSelector = "td.csBDane"
)

// Extractor produces a SectionDocument from one department's markup. A parse
// failure never propagates: it is recorded in the document's
// extraction_error, leaving already-extracted content intact.
type Extractor interface {
	Extract(rawHTML string) *models.SectionDocument
}

// ForDepartment returns the extraction strategy for a department code.
// Dział II deviates from the tabular convention and keeps a distinct path.
func ForDepartment(code string) Extractor {
	if code == models.DzialII {
		return ownershipExtractor{}
	}
	return genericExtractor{}
}

// genericExtractor handles the header/value table layout shared by
// departments I-O, I-Sp, III and IV.
type genericExtractor struct{}

func (genericExtractor) Extract(rawHTML string) *models.SectionDocument {
	doc := models.NewSectionDocument()
	parseSection(doc, rawHTML)
	return doc
}

// parseSection fills doc from rawHTML, containing any panic from malformed
// markup inside this section's boundary.
func parseSection(doc *models.SectionDocument, rawHTML string) *goquery.Document {
	defer func() {
		if r := recover(); r != nil {
			doc.ExtractionError = fmt.Sprintf("section parse failed: %v", r)
		}
	}()

	if strings.TrimSpace(rawHTML) == "" {
		doc.ExtractionError = "section content is empty"
		return nil
	}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		doc.ExtractionError = fmt.Sprintf("section parse failed: %v", err)
		return nil
	}

	doc.Title = cleanText(gq.Find(titleCellSelector).First().Text())

	extractFields(doc, gq)
	extractTables(doc, gq)
	doc.DocumentBasis = ExtractDocumentBasis(gq)

	return gq
}

// extractFields collects key/value rows from the field tables: the first
// marked key cell names the field, the marked value cell (or a second key
// cell) carries its value.
func extractFields(doc *models.SectionDocument, gq *goquery.Document) {
	gq.Find(fieldTableSelector + " tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find(titleCellSelector).Length() > 0 {
			return
		}
		keyCells := row.Find(fieldKeySelector)
		if keyCells.Length() == 0 {
			return
		}
		key := cleanText(keyCells.First().Text())
		if key == "" {
			return
		}

		var value string
		if valueCells := row.Find(fieldValueSelector); valueCells.Length() > 0 {
			value = cleanText(valueCells.First().Text())
		} else if keyCells.Length() > 1 {
			value = cleanText(keyCells.Eq(1).Text())
		} else {
			return
		}
		doc.Fields.Set(key, value)
	})
}

// extractTables collects the generically laid out data tables, one ordered
// row-mapping per data row. A table that cannot be parsed is recorded on
// the document without discarding tables already extracted.
func extractTables(doc *models.SectionDocument, gq *goquery.Document) {
	gq.Find(dataTableSelector).Each(func(i int, table *goquery.Selection) {
		defer func() {
			if r := recover(); r != nil {
				doc.ExtractionError = fmt.Sprintf("table %d parse failed: %v", i, r)
			}
		}()
		doc.Tables = append(doc.Tables, TableData(table)...)
	})
}

// TableData zips the first row of a table as headers with every subsequent
// row. Cells beyond the header's length are skipped, empty rows dropped. A
// header-less or single-row table yields no data.
func TableData(table *goquery.Selection) []*models.OrderedMap {
	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil
	}

	var headers []string
	rows.First().Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, cleanText(cell.Text()))
	})
	if len(headers) < 2 {
		return nil
	}

	var out []*models.OrderedMap
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		rowData := models.NewOrderedMap()
		row.Find("td").Each(func(j int, cell *goquery.Selection) {
			if j >= len(headers) || headers[j] == "" {
				return
			}
			rowData.Set(headers[j], cleanText(cell.Text()))
		})
		if rowData.Len() > 0 {
			out = append(out, rowData)
		}
	})
	return out
}

// TablesFromHTML parses a fragment and extracts every generically laid out
// data table in it.
func TablesFromHTML(rawHTML string) []*models.OrderedMap {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var out []*models.OrderedMap
	gq.Find(dataTableSelector).Each(func(_ int, table *goquery.Selection) {
		out = append(out, TableData(table)...)
	})
	return out
}

// cleanText collapses whitespace in a cell's text.
func cleanText(s string) string {
	return htmlclean.CollapseWhitespace(s)
}

// Package htmltable recovers tabular data from HTML documents.
//
// Real-world "CSV" exports are sometimes HTML pages with a single data
// table (a spreadsheet export, a report page saved to disk). When the
// loader sniffs HTML markup it asks this package for the first <table>
// before giving up on the file.
//
// Extraction is intentionally simple: the first <table> in document
// order, header cells from <th> (falling back to the first row), one
// record per <tr>. Anything more structured belongs in a dedicated
// scraping pipeline, not in a loader fallback.
package htmltable

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse extracts the first table of an HTML document as a header row plus
// data rows. Cell text is whitespace-trimmed.
//
// Errors:
//   - The document cannot be parsed as HTML.
//   - The document contains no <table>.
//   - The table has no usable rows.
func Parse(html []byte) ([]string, [][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, fmt.Errorf("no <table> element found")
	}

	var headers []string
	var rows [][]string

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Skip rows that belong to a nested table.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}

		ths := cellTexts(tr, "th")
		tds := cellTexts(tr, "td")

		switch {
		case headers == nil && len(ths) > 0:
			headers = ths
		case headers == nil && len(tds) > 0:
			// No <th> header row: promote the first data row.
			headers = tds
		case len(tds) > 0:
			rows = append(rows, tds)
		}
	})

	if len(headers) == 0 {
		return nil, nil, fmt.Errorf("table has no rows")
	}
	return headers, rows, nil
}

func cellTexts(tr *goquery.Selection, sel string) []string {
	var out []string
	tr.ChildrenFiltered(sel).Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}

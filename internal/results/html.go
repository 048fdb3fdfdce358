package results

import (
	"fmt"
	"strings"

	"github.com/anaskhan96/soup"
	"golang.org/x/net/html"
)

// Positional cell layout of HTML result tables.
const (
	htmlBibCell = iota
	htmlNameCell
	htmlGenderCell
	htmlCategoryCell
	htmlTimeCell
	htmlStatusCell
)

// ParseHTML parses the rows of every table in an HTML document. The first
// row is a header; following rows are read by cell position.
func ParseHTML(content string) ParseResult {
	rows, err := tableRows(content)
	if err != nil {
		return batchError(err.Error())
	}
	if len(rows) == 0 {
		return batchError(msgNoHTMLTable)
	}

	res := newParseResult()
	for i := 1; i < len(rows); i++ {
		cells := rows[i]
		guardRow(&res, i+1, func() {
			if len(cells) < 3 {
				return
			}
			f := rowFields{
				bib:      cellAt(cells, htmlBibCell),
				name:     cellAt(cells, htmlNameCell),
				gender:   cellAt(cells, htmlGenderCell),
				category: cellAt(cells, htmlCategoryCell),
				finish:   cellAt(cells, htmlTimeCell),
				status:   cellAt(cells, htmlStatusCell),
			}
			f.appendTo(&res, i+1)
		})
	}
	return res
}

// tableRows returns the text of the td/th cells of every tr that sits
// inside a table, in document order.
func tableRows(content string) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("HTML illisible: %v", r)
		}
	}()

	doc := soup.HTMLParse(content)
	if doc.Error != nil {
		return nil, fmt.Errorf("HTML illisible: %w", doc.Error)
	}

	for _, tr := range doc.FindAll("tr") {
		if !hasAncestor(tr.Pointer, "table") {
			continue
		}
		rows = append(rows, rowCells(tr))
	}
	return rows, nil
}

func rowCells(tr soup.Root) []string {
	var cells []string
	for _, c := range tr.Children() {
		if c.Pointer == nil || c.Pointer.Type != html.ElementNode {
			continue
		}
		if c.NodeValue != "td" && c.NodeValue != "th" {
			continue
		}
		cells = append(cells, strings.TrimSpace(c.FullText()))
	}
	return cells
}

func hasAncestor(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}

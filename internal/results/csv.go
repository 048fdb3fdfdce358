package results

// ParseCSV parses delimited text whose first non-blank line is a header.
//
// The delimiter is sniffed from the header (tab, then semicolon, then
// comma). Columns are located with DetectColumns; when a column is not
// found the common export layout is assumed: bib in cell 0, last name in
// cell 1, first name in cell 2, gender in cell 3, category in cell 4 and
// the first time-shaped cell as finish time. The status is read from the
// last cell.
func ParseCSV(content string) ParseResult {
	lines := nonBlankLines(content)
	if len(lines) < 2 {
		return batchError(msgEmptyFile)
	}

	split := newCellSplitter(sniffDelimiter(lines[0].text))
	cols := detectColumnCells(split.Split(lines[0].text))

	res := newParseResult()
	for _, line := range lines[1:] {
		guardRow(&res, line.num, func() {
			cells := split.Split(line.text)
			if len(cells) < 3 {
				return
			}
			csvRowFields(cells, cols).appendTo(&res, line.num)
		})
	}
	return res
}

func csvRowFields(cells []string, cols ColumnIndices) rowFields {
	f := rowFields{
		bib:    cellAt(cells, pick(cols.Bib, 0)),
		gender: cellAt(cells, pick(cols.Gender, 3)),
		status: cells[len(cells)-1],
	}
	f.category = cellAt(cells, pick(cols.Category, 4))

	switch {
	case cols.Name >= 0 && cols.LastName >= 0:
		f.name = joinName(cellAt(cells, cols.Name), cellAt(cells, cols.LastName))
	case cols.Name >= 0 && cols.FirstName >= 0:
		f.name = joinName(cellAt(cells, cols.FirstName), cellAt(cells, cols.Name))
	case cols.Name >= 0:
		f.name = cellAt(cells, cols.Name)
	default:
		f.name = joinName(cellAt(cells, 2), cellAt(cells, 1))
	}

	if cols.Time >= 0 {
		f.finish = cellAt(cells, cols.Time)
	} else {
		f.finish = findTimeToken(cells)
	}
	return f
}

// pick returns detected when it is a real index, else fallback.
func pick(detected, fallback int) int {
	if detected >= 0 {
		return detected
	}
	return fallback
}

package results

// Parse detects the format of an import file and runs the matching parser.
// Spreadsheets must already be converted to delimited text.
func Parse(filename, content string) ParseResult {
	return ParseAs(Detect(filename, content), content)
}

// ParseAs runs the parser for a known format.
func ParseAs(format Format, content string) ParseResult {
	return safeParse(func() ParseResult {
		switch format {
		case FormatElogica:
			return parseElogica(content)
		case FormatFFAText:
			return ParseFFAText(content)
		case FormatHTML:
			return ParseHTML(content)
		default:
			return ParseCSV(content)
		}
	})
}

// HeaderCells returns the cells of the header row of content, as the
// parsers would read them. Fixed-width and XML documents have no header
// and return nil.
func HeaderCells(format Format, content string) []string {
	switch format {
	case FormatElogica, FormatFFAText:
		return nil
	case FormatHTML:
		rows, err := tableRows(content)
		if err != nil || len(rows) == 0 {
			return nil
		}
		return rows[0]
	}

	lines := nonBlankLines(content)
	if len(lines) == 0 {
		return nil
	}
	return newCellSplitter(sniffDelimiter(lines[0].text)).Split(lines[0].text)
}

package results

// ParseWithMapping parses content using explicit cell indices instead of
// header heuristics. HTML content is read from its table rows; anything
// else is treated as delimited text split on separator, or on the sniffed
// header delimiter when separator is empty. The first row is always a
// header.
func ParseWithMapping(content string, mapping ColumnMapping, separator string) ParseResult {
	return safeParse(func() ParseResult {
		if looksLikeHTML(content) {
			return parseHTMLWithMapping(content, mapping)
		}
		return parseDelimitedWithMapping(content, mapping, separator)
	})
}

func parseDelimitedWithMapping(content string, mapping ColumnMapping, separator string) ParseResult {
	lines := nonBlankLines(content)
	if len(lines) < 2 {
		return batchError(msgEmptyFile)
	}
	if separator == "" {
		separator = sniffDelimiter(lines[0].text)
	}
	split := newCellSplitter(separator)

	res := newParseResult()
	for _, line := range lines[1:] {
		guardRow(&res, line.num, func() {
			mappedRowFields(split.Split(line.text), mapping).appendTo(&res, line.num)
		})
	}
	return res
}

func parseHTMLWithMapping(content string, mapping ColumnMapping) ParseResult {
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
			mappedRowFields(cells, mapping).appendTo(&res, i+1)
		})
	}
	return res
}

// mappedRowFields reads one row through mapping. Unmapped fields stay empty.
func mappedRowFields(cells []string, mapping ColumnMapping) rowFields {
	get := func(key string) string {
		idx, ok := mapping.Index(key)
		if !ok {
			return ""
		}
		return cellAt(cells, idx)
	}

	f := rowFields{
		bib:      get(FieldBib),
		gender:   get(FieldGender),
		category: get(FieldCategory),
		gun:      get(FieldGunTime),
		net:      get(FieldNetTime),
		status:   get(FieldStatus),
	}

	if mapping.Has(FieldFullName) {
		f.name = get(FieldFullName)
	} else {
		f.name = joinName(get(FieldFirstName), get(FieldLastName))
	}

	// A file that only reports gun or net time still gets a displayable time.
	f.finish = get(FieldFinishTime)
	if NormalizeTime(f.finish) == "" {
		f.finish = f.net
	}
	if NormalizeTime(f.finish) == "" {
		f.finish = f.gun
	}

	for _, key := range mapping.Keys() {
		if coreFields[key] {
			continue
		}
		if v := get(key); v != "" {
			if f.custom == nil {
				f.custom = CustomFields{}
			}
			f.custom.Set(key, v)
		}
	}
	return f
}

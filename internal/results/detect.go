package results

import (
	"path/filepath"
	"strings"
)

const sniffLen = 100

// Detect classifies an import file. Content sniffing runs first so that a
// misleading extension cannot route HTML or XML to the wrong parser; the
// filename is only consulted when the content is inconclusive.
func Detect(filename, content string) Format {
	if isXMLDocument(content) {
		return FormatElogica
	}
	if looksLikeHTML(content) {
		return FormatHTML
	}

	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "elogica"), strings.Contains(name, "elog"):
		return FormatElogica
	case strings.Contains(name, "ffa"), strings.Contains(name, "e@logica"):
		return FormatFFAText
	}

	switch filepath.Ext(name) {
	case ".xlsx", ".xls":
		return FormatExcel
	case ".html", ".htm":
		return FormatHTML
	case ".txt":
		return FormatFFAText
	}
	return FormatCSV
}

// IsSpreadsheet reports whether filename carries a spreadsheet extension.
func IsSpreadsheet(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

func isXMLDocument(content string) bool {
	c := strings.TrimLeft(content, "\uFEFF \t\r\n")
	return strings.HasPrefix(c, "<?xml")
}

// looksLikeHTML checks the first characters of content for HTML markers.
func looksLikeHTML(content string) bool {
	head := strings.ToLower(firstRunes(content, sniffLen))
	return strings.Contains(head, "<html") ||
		strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<table")
}

// firstRunes returns at most n characters from the start of s.
func firstRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

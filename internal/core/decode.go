package core

// decode.go turns uploaded bytes into the text the parsers read.
//
// Text files are decoded honouring a UTF-8 or UTF-16 byte order mark. Files
// without a BOM that are not valid UTF-8 are decoded with the configured
// legacy charset, since most timing software on Windows still writes
// Windows-1252. Spreadsheets are flattened to tab-delimited text, which the
// delimited parsers sniff like any other export.

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeContent returns the parser input for an uploaded file.
func DecodeContent(filename string, raw []byte, legacyCharset string) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyFile
	}
	if results.IsSpreadsheet(filename) {
		return SpreadsheetToText(raw)
	}
	return decodeText(raw, legacyCharset)
}

// MappedSeparator returns the cell separator a mapped parse of filename's
// decoded content must use. Spreadsheets decode to tab-delimited text, so a
// separator saved from a text export of the same layout does not apply.
func MappedSeparator(filename, separator string) string {
	if results.IsSpreadsheet(filename) {
		return "\t"
	}
	return separator
}

// templateSeparator is the separator remembered by a template saved from an
// import of filename. Text imports keep the separator they were parsed
// with. Spreadsheet imports keep the caller's separator, which usually came
// from a template built on a text export, but never the decoded tab.
func templateSeparator(filename, separator string) string {
	if results.IsSpreadsheet(filename) && separator == "\t" {
		return ""
	}
	return separator
}

func decodeText(raw []byte, legacyCharset string) (string, error) {
	fallback := unicode.UTF8.NewDecoder()
	if legacyCharset != "" && !utf8.Valid(bytes.TrimPrefix(raw, utf8BOM)) {
		enc, err := htmlindex.Get(legacyCharset)
		if err != nil {
			return "", fmt.Errorf("unknown charset %q: %w", legacyCharset, err)
		}
		fallback = enc.NewDecoder()
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), raw)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return strings.ToValidUTF8(string(out), "\uFFFD"), nil
}

// SpreadsheetToText flattens the first non-empty sheet of a workbook into
// tab-delimited lines. Blank rows become empty lines so line numbers keep
// matching sheet rows.
func SpreadsheetToText(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableSpreadsheet, err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: sheet %q: %v", ErrUnreadableSpreadsheet, sheet, err)
		}

		var (
			b       strings.Builder
			hasData bool
		)
		for _, row := range rows {
			if isBlankRow(row) {
				b.WriteByte('\n')
				continue
			}
			hasData = true
			for i, cell := range row {
				if i > 0 {
					b.WriteByte('\t')
				}
				b.WriteString(cellReplacer.Replace(cell))
			}
			b.WriteByte('\n')
		}
		if hasData {
			return b.String(), nil
		}
	}
	return "", ErrEmptyFile
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

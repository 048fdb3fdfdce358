package results

import (
	"fmt"
	"strings"

	"github.com/go-andiamo/splitter"
)

// Row-level messages surfaced to the operator.
const (
	msgMissingName  = "Nom athlète manquant"
	msgMissingBib   = "Dossard manquant"
	msgEmptyFile    = "Fichier vide ou sans données"
	msgNoHTMLTable  = "Aucun tableau trouvé dans le fichier HTML"
	msgNoXMLResults = "Aucun résultat trouvé dans le fichier XML"
)

// statusTokens maps lowercased trailing tokens to a race status.
var statusTokens = map[string]Status{
	"abandon":      StatusDidNotFinish,
	"abandonné":    StatusDidNotFinish,
	"abandonne":    StatusDidNotFinish,
	"ab":           StatusDidNotFinish,
	"abd":          StatusDidNotFinish,
	"dnf":          StatusDidNotFinish,
	"non partant":  StatusDidNotStart,
	"non-partant":  StatusDidNotStart,
	"np":           StatusDidNotStart,
	"dns":          StatusDidNotStart,
	"absent":       StatusDidNotStart,
	"disqualifié":  StatusDisqualified,
	"disqualifie":  StatusDisqualified,
	"disqualified": StatusDisqualified,
	"disq":         StatusDisqualified,
	"dsq":          StatusDisqualified,
	"dq":           StatusDisqualified,
}

// detectStatus returns the status named by token, or finished.
func detectStatus(token string) Status {
	if s, ok := statusTokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return s
	}
	return StatusFinished
}

// normalizeGender maps source gender tokens to M, F or X. Unknown tokens
// return the empty string.
func normalizeGender(raw string) string {
	g := strings.ToUpper(strings.TrimSpace(raw))
	if g == "" {
		return ""
	}
	switch []rune(g)[0] {
	case 'M', 'H':
		return "M"
	case 'F', 'W', 'D':
		return "F"
	case 'X', 'N':
		return "X"
	}
	return ""
}

// parseBib reads a leading integer the way lenient spreadsheet exports
// write bibs ("101", " 42 ", "17b"). The boolean is false when no positive
// number could be read.
func parseBib(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	n := 0
	digits := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
		if n > 1<<31 {
			return 0, false
		}
	}
	if digits == 0 || neg || n <= 0 {
		return 0, false
	}
	return n, true
}

// joinName joins non-empty name parts with a single space.
func joinName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// cellAt returns the trimmed cell at idx, or "" when out of range.
func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// sourceLine is a non-blank line with its 1-based line number in the
// source, so row errors point at the line a user sees in an editor.
type sourceLine struct {
	text string
	num  int
}

// nonBlankLines splits content into lines and drops blank ones. Trailing
// carriage returns are removed.
func nonBlankLines(content string) []sourceLine {
	raw := strings.Split(content, "\n")
	lines := make([]sourceLine, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, sourceLine{text: l, num: i + 1})
	}
	return lines
}

// sniffDelimiter picks the delimiter used by a header line.
func sniffDelimiter(header string) string {
	switch {
	case strings.Contains(header, "\t"):
		return "\t"
	case strings.Contains(header, ";"):
		return ";"
	default:
		return ","
	}
}

// cellSplitter splits delimited lines while honoring double-quoted cells.
type cellSplitter struct {
	delim string
	sp    splitter.Splitter
}

func newCellSplitter(delim string) *cellSplitter {
	cs := &cellSplitter{delim: delim}
	if r := []rune(delim); len(r) == 1 {
		if sp, err := splitter.NewSplitter(r[0], splitter.DoubleQuotes); err == nil {
			cs.sp = sp
		}
	}
	return cs
}

// Split returns the cells of line with surrounding quotes removed. Lines
// with unbalanced quotes fall back to a plain split.
func (cs *cellSplitter) Split(line string) []string {
	var cells []string
	if cs.sp != nil {
		if parts, err := cs.sp.Split(line); err == nil {
			cells = parts
		}
	}
	if cells == nil {
		cells = strings.Split(line, cs.delim)
	}
	for i, c := range cells {
		cells[i] = unquote(c)
	}
	return cells
}

func unquote(cell string) string {
	c := strings.TrimSpace(cell)
	if len(c) >= 2 && c[0] == '"' && c[len(c)-1] == '"' {
		c = strings.ReplaceAll(c[1:len(c)-1], `""`, `"`)
	}
	return c
}

// runeSlice returns the trimmed characters [from, to) of line, clamped to
// its length.
func runeSlice(line []rune, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return strings.TrimSpace(string(line[from:to]))
}

// guardRow runs fn and converts a panic into a row error.
func guardRow(res *ParseResult, row int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			res.addError(row, fmt.Sprintf("Erreur de traitement: %v", r))
		}
	}()
	fn()
}

// safeParse runs parse and turns a panic into a batch error.
func safeParse(parse func() ParseResult) (res ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			res = batchError(fmt.Sprintf("Erreur de traitement: %v", r))
		}
	}()
	return parse()
}

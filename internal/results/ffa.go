package results

// Character offsets of the federation fixed-width layout.
const (
	ffaMinLineLen = 20

	ffaBibStart, ffaBibEnd           = 0, 6
	ffaNameStart, ffaNameEnd         = 6, 40
	ffaGenderStart, ffaGenderEnd     = 40, 42
	ffaCategoryStart, ffaCategoryEnd = 42, 48
	ffaTimeStart, ffaTimeEnd         = 48, 60
	ffaStatusStart, ffaStatusEnd     = 60, 70
)

// ParseFFAText parses a fixed-width federation export with one participant
// per line. Lines shorter than 20 characters are padding and are skipped.
func ParseFFAText(content string) ParseResult {
	res := newParseResult()
	for _, line := range nonBlankLines(content) {
		runes := []rune(line.text)
		if len(runes) < ffaMinLineLen {
			continue
		}
		guardRow(&res, line.num, func() {
			f := rowFields{
				bib:      runeSlice(runes, ffaBibStart, ffaBibEnd),
				name:     runeSlice(runes, ffaNameStart, ffaNameEnd),
				gender:   runeSlice(runes, ffaGenderStart, ffaGenderEnd),
				category: runeSlice(runes, ffaCategoryStart, ffaCategoryEnd),
				finish:   runeSlice(runes, ffaTimeStart, ffaTimeEnd),
				status:   runeSlice(runes, ffaStatusStart, ffaStatusEnd),
			}
			f.appendTo(&res, line.num)
		})
	}
	return res
}

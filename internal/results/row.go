package results

// rowFields carries the raw values of one source row before validation.
type rowFields struct {
	bib      string
	name     string
	gender   string
	category string
	finish   string
	gun      string
	net      string
	status   string
	custom   CustomFields
}

// appendTo applies the shared row policy: rows without a positive bib are
// skipped, rows without a name are reported, everything else becomes a
// result.
func (f rowFields) appendTo(res *ParseResult, row int) {
	bib, ok := parseBib(f.bib)
	if !ok {
		return
	}
	if f.name == "" {
		res.addError(row, msgMissingName)
		return
	}

	r := ParsedResult{
		BibNumber:   bib,
		AthleteName: f.name,
		Gender:      normalizeGender(f.gender),
		Category:    f.category,
		FinishTime:  NormalizeTime(f.finish),
		GunTime:     NormalizeTime(f.gun),
		NetTime:     NormalizeTime(f.net),
		Status:      detectStatus(f.status),
	}
	if len(f.custom) > 0 {
		r.CustomFields = f.custom
	}
	res.Results = append(res.Results, r)
}

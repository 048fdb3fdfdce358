// Package results turns race-timing exports into normalized finish records.
//
// Supported inputs are delimited text (CSV, TSV, semicolon), fixed-width
// federation text exports, HTML result tables and Elogica XML exports.
// Spreadsheets are accepted once converted to delimited text by the caller.
//
// Every parser in this package is pure and total: it performs no I/O, keeps
// no package-level mutable state and never returns an error or panics out to
// the caller. Failures are reported in ParseResult.Errors as row errors, and
// rows that cannot even yield a bib number are skipped silently.
//
// Typical use:
//
//	res := results.Parse(filename, content)
//	for _, e := range res.Errors {
//	    log.Printf("row %d: %s", e.Row, e.Error)
//	}
//
// When the operator has mapped columns by hand, ParseWithMapping replaces
// header heuristics with explicit cell indices.
package results

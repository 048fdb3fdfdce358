// Package core runs race result imports on top of the parsers in package
// results.
//
// This package holds the import workflow independent of any transport. It
// is used by the web handlers and can be driven from tests with an
// in-memory [Store].
//
// # Import Flow
//
// [Service.StartImport] validates the request, takes a slot from the
// [ImportLimiter] and processes the file in the background:
//
//  1. reading: bytes are decoded with [DecodeContent] (BOM, legacy charset,
//     spreadsheets flattened to tab-delimited text)
//  2. parsing: the mapped parser when the request carries a mapping,
//     otherwise the detected format's parser
//  3. inserting: results are upserted in batches of Import.BatchSize keyed
//     by (race, bib); a failed batch counts its rows as failed
//  4. auditing: an [ImportRecord] is written, also for failed and
//     cancelled imports
//  5. ranking: a River job recomputes the race's ranks
//
// Progress is broadcast to subscribers via [Service.SubscribeProgress].
// Finished imports stay in memory for Import.ResultRetention and are read
// back from the store afterwards.
//
// # Mapping Templates
//
// Saved templates, YAML presets and keyword matching feed
// [Service.SuggestMapping], in that order of preference.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category has a code organizers can quote to support:
//
//   - IMP001-IMP005: Import errors (busy, not found, cancelled, timeout)
//   - RACE001: Race errors
//   - FILE001-FILE005: File errors (size, empty, spreadsheet, encoding)
//   - MAP001-MAP003: Mapping and template errors
//   - DB001-DB004: Database errors
//   - AUTH001-AUTH002, RATE001: Access errors
//
// Parse problems are never errors: they travel as results.RowError values
// in the import result.
package core

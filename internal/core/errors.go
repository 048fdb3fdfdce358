package core

import "errors"

var (
	// ErrImportNotFound is returned for unknown or expired import IDs.
	ErrImportNotFound = errors.New("import not found")

	// ErrInvalidRaceID is returned when a race ID is not a UUID.
	ErrInvalidRaceID = errors.New("invalid race id")

	// ErrFileTooLarge is returned when an upload exceeds Import.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnreadableSpreadsheet is returned when a .xlsx/.xls file cannot be opened.
	ErrUnreadableSpreadsheet = errors.New("unreadable spreadsheet")

	// ErrInvalidMapping is returned for mappings with negative indices or no bib column.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrTemplateNotFound is returned for unknown template IDs.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateExists is returned when a template name is already taken.
	ErrTemplateExists = errors.New("template already exists")

	// ErrImportFinished is returned when cancelling an import that already ended.
	ErrImportFinished = errors.New("import already finished")
)

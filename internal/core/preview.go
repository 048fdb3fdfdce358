package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/raceresults/internal/results"
)

// PreviewRequest is a file to inspect before importing it.
type PreviewRequest struct {
	FileName  string
	Content   []byte
	Mapping   results.ColumnMapping
	Separator string
}

// Preview is what the import dialog shows before the user confirms.
type Preview struct {
	Format       results.Format         `json:"format"`
	Headers      []string               `json:"headers"`
	Suggestion   *MappingSuggestion     `json:"suggestion,omitempty"`
	Sample       []results.ParsedResult `json:"sample"`
	Errors       []results.RowError     `json:"errors"`
	TotalResults int                    `json:"totalResults"`
	TotalErrors  int                    `json:"totalErrors"`

	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// Preview decodes and parses a file without storing anything. The sample
// holds the first Import.PreviewRows results and as many errors; the
// totals cover the whole file.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	start := time.Now()

	if len(req.Content) == 0 {
		return nil, ErrEmptyFile
	}
	if limit := int64(s.cfg.MaxFileSize); limit > 0 && int64(len(req.Content)) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit is %s", ErrFileTooLarge, len(req.Content), s.cfg.MaxFileSize)
	}
	if len(req.Mapping) > 0 {
		if err := validateMapping(req.Mapping); err != nil {
			return nil, err
		}
	}

	content, err := s.decode(ctx, ImportRequest{FileName: req.FileName, Content: req.Content})
	if err != nil {
		return nil, err
	}

	format := results.Detect(req.FileName, content)
	parsed := s.parse(ctx, format, content, ImportRequest{FileName: req.FileName, Mapping: req.Mapping, Separator: req.Separator})

	preview := &Preview{
		Format:       format,
		Headers:      results.HeaderCells(format, content),
		Sample:       head(parsed.Results, s.previewRows()),
		Errors:       head(parsed.Errors, s.previewRows()),
		TotalResults: len(parsed.Results),
		TotalErrors:  len(parsed.Errors),
	}
	if preview.Headers == nil {
		preview.Headers = []string{}
	}

	if len(preview.Headers) > 0 {
		suggestion, err := s.SuggestMapping(ctx, preview.Headers)
		if err != nil {
			return nil, err
		}
		preview.Suggestion = &suggestion
	}

	preview.ProcessingTimeMs = time.Since(start).Milliseconds()
	return preview, nil
}

func (s *Service) previewRows() int {
	if s.cfg.PreviewRows > 0 {
		return s.cfg.PreviewRows
	}
	return 10
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}

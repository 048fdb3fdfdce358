package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/results"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// auditTimeout bounds the writes that must happen even after cancellation.
const auditTimeout = 10 * time.Second

// processImport runs one import through its phases and records the outcome.
func (s *Service) processImport(ctx context.Context, imp *activeImport, req ImportRequest) {
	ctx, span := s.tracer.Start(ctx, "import",
		trace.WithAttributes(
			attribute.String("import.id", imp.ID),
			attribute.String("race.id", req.RaceID),
			attribute.String("file.name", req.FileName),
			attribute.Int("file.size", len(req.Content)),
		))
	defer span.End()

	result := s.runImport(ctx, imp, req)

	span.SetAttributes(
		attribute.String("import.format", string(result.Format)),
		attribute.String("import.status", string(result.Status)),
		attribute.Int("import.imported", result.Imported),
		attribute.Int("import.failed", result.Failed),
	)
	if result.Status == PhaseFailed {
		span.SetStatus(codes.Error, result.Error)
	}

	s.finish(imp, result)
}

func (s *Service) runImport(ctx context.Context, imp *activeImport, req ImportRequest) *ImportResult {
	start := time.Now()
	log := s.logger.With("import_id", imp.ID, "race_id", req.RaceID, "file", req.FileName)
	if reqID := logging.RequestID(ctx); reqID != "" {
		log = log.With("request_id", reqID)
	}

	result := &ImportResult{
		ImportID: imp.ID,
		RaceID:   req.RaceID,
		FileName: req.FileName,
		Errors:   []results.RowError{},
	}
	fail := func(err error) *ImportResult {
		result.Status = phaseForError(ctx, err)
		result.Error = err.Error()
		result.Message = FormatUserError(err)
		result.Duration = time.Since(start)
		s.audit(ctx, req, result)
		return result
	}

	// Reading
	imp.update(func(p *ImportProgress) { p.Phase = PhaseReading })
	content, err := s.decode(ctx, req)
	if err != nil {
		log.Warn("import decode failed", "error", err)
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Parsing
	result.Format = results.Detect(req.FileName, content)
	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseParsing
		p.Format = result.Format
	})
	parsed := s.parse(ctx, result.Format, content, req)
	result.Errors = append(result.Errors, parsed.Errors...)
	rowErrors := countRowErrors(parsed.Errors)
	result.TotalRows = len(parsed.Results) + rowErrors
	result.Failed = rowErrors

	if len(parsed.Results) == 0 && parsed.HasErrors() {
		log.Info("import produced no results", "format", result.Format, "errors", len(parsed.Errors))
		return fail(errors.New(parsed.Errors[0].Error))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Inserting
	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseInserting
		p.TotalRows = result.TotalRows
		p.Processed = rowErrors
		p.Failed = rowErrors
	})
	if err := s.insert(ctx, imp, req, parsed.Results, result); err != nil {
		return fail(err)
	}

	result.Status = PhaseComplete
	result.Duration = time.Since(start)

	// Auditing
	imp.update(func(p *ImportProgress) { p.Phase = PhaseAuditing })
	s.audit(ctx, req, result)

	// Ranking
	if result.Imported > 0 && s.ranker != nil {
		imp.update(func(p *ImportProgress) { p.Phase = PhaseRanking })
		if err := s.ranker.EnqueueRecompute(ctx, req.RaceID); err != nil {
			log.Error("failed to enqueue ranking", "error", err)
		} else {
			result.Ranked = true
		}
	}

	if req.TemplateName != "" && result.Imported > 0 {
		// Mapped files are read as delimited text whatever their extension.
		headerFormat := results.FormatCSV
		if result.Format == results.FormatHTML {
			headerFormat = results.FormatHTML
		}
		headers := results.HeaderCells(headerFormat, content)
		if _, err := s.SaveTemplate(ctx, req.TemplateName, headers, req.Mapping, templateSeparator(req.FileName, req.Separator)); err != nil {
			log.Warn("failed to save mapping template", "template", req.TemplateName, "error", err)
		}
	}

	log.Info("import complete",
		"format", result.Format,
		"rows", result.TotalRows,
		"imported", result.Imported,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result
}

func (s *Service) decode(ctx context.Context, req ImportRequest) (string, error) {
	_, span := s.tracer.Start(ctx, "import.decode")
	defer span.End()

	content, err := DecodeContent(req.FileName, req.Content, s.cfg.LegacyCharset)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return content, nil
}

func (s *Service) parse(ctx context.Context, format results.Format, content string, req ImportRequest) results.ParseResult {
	_, span := s.tracer.Start(ctx, "import.parse",
		trace.WithAttributes(
			attribute.String("import.format", string(format)),
			attribute.Bool("import.mapped", len(req.Mapping) > 0),
		))
	defer span.End()

	start := time.Now()
	var parsed results.ParseResult
	if len(req.Mapping) > 0 {
		parsed = results.ParseWithMapping(content, req.Mapping, MappedSeparator(req.FileName, req.Separator))
	} else {
		parsed = results.ParseAs(format, content)
	}
	s.metrics.ObserveParse(format, time.Since(start))

	span.SetAttributes(
		attribute.Int("parse.results", len(parsed.Results)),
		attribute.Int("parse.errors", len(parsed.Errors)),
	)
	return parsed
}

// insert upserts rows in batches. A failed batch counts all of its rows as
// failed and is reported as a document-level error; the import goes on with
// the next batch. Only cancellation stops it.
func (s *Service) insert(ctx context.Context, imp *activeImport, req ImportRequest, rows []results.ParsedResult, result *ImportResult) error {
	ctx, span := s.tracer.Start(ctx, "import.insert",
		trace.WithAttributes(attribute.Int("import.rows", len(rows))))
	defer span.End()

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+batchSize, len(rows))
		batch := rows[start:end]

		if err := s.store.UpsertResults(ctx, req.RaceID, imp.ID, batch); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			span.RecordError(err)
			s.logger.Error("result batch failed",
				"import_id", imp.ID,
				"first_bib", batch[0].BibNumber,
				"rows", len(batch),
				"error", err,
			)
			result.Failed += len(batch)
			result.Errors = append(result.Errors, results.RowError{
				Row:   0,
				Error: fmt.Sprintf("%d results from bib %d not saved: %v", len(batch), batch[0].BibNumber, err),
			})
		} else {
			result.Imported += len(batch)
		}

		imp.update(func(p *ImportProgress) {
			p.Processed += len(batch)
			p.Imported = result.Imported
			p.Failed = result.Failed
		})
	}
	return nil
}

// audit persists the import record. It runs detached from cancellation so
// cancelled and timed out imports are recorded too.
func (s *Service) audit(ctx context.Context, req ImportRequest, result *ImportResult) {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	rec := ImportRecord{
		ID:        result.ImportID,
		RaceID:    result.RaceID,
		FileName:  result.FileName,
		Format:    result.Format,
		Status:    result.Status,
		TotalRows: result.TotalRows,
		Imported:  result.Imported,
		Failed:    result.Failed,
		Mapping:   req.Mapping,
		Errors:    result.Errors,
		Actor:     req.Actor,
		Duration:  result.Duration,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.RecordImport(auditCtx, rec); err != nil {
		s.logger.Error("failed to record import",
			"import_id", result.ImportID,
			"error", err,
		)
	}
}

// finish publishes the final result and schedules removal from memory.
// Safe to call more than once; only the first call counts.
func (s *Service) finish(imp *activeImport, result *ImportResult) {
	imp.once.Do(func() {
		s.metrics.RecordImport(result.Format, result.Status)
		s.metrics.AddRows(rowsImported, result.Imported)
		s.metrics.AddRows(rowsFailed, result.Failed)

		imp.Result = result
		imp.update(func(p *ImportProgress) {
			p.Phase = result.Status
			p.Format = result.Format
			p.Imported = result.Imported
			p.Failed = result.Failed
			p.Error = result.Error
			if result.Status == PhaseComplete {
				p.Processed = p.TotalRows
			}
		})
		imp.closeListeners()
		close(imp.Done)
		s.cleanup(imp.ID, s.retention())

		if s.notifier != nil {
			go s.notifier.Notify(context.Background(), *result)
		}
	})
}

// phaseForError maps the error that ended an import to its terminal phase.
func phaseForError(ctx context.Context, err error) ImportPhase {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return PhaseCancelled
	}
	return PhaseFailed
}

func countRowErrors(errs []results.RowError) int {
	n := 0
	for _, e := range errs {
		if e.Row > 0 {
			n++
		}
	}
	return n
}

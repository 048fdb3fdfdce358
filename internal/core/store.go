package core

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store persists results, import records and mapping templates.
type Store interface {
	// UpsertResults writes rows in one transaction, replacing any existing
	// result with the same (race, bib).
	UpsertResults(ctx context.Context, raceID, importID string, rows []results.ParsedResult) error
	ListResults(ctx context.Context, raceID string) ([]StoredResult, error)

	RecordImport(ctx context.Context, rec ImportRecord) error
	GetImport(ctx context.Context, id string) (*ImportRecord, error)
	ListImports(ctx context.Context, raceID string, limit int) ([]ImportRecord, error)

	CreateTemplate(ctx context.Context, t MappingTemplate) (*MappingTemplate, error)
	GetTemplate(ctx context.Context, id string) (*MappingTemplate, error)
	ListTemplates(ctx context.Context) ([]MappingTemplate, error)
	UpdateTemplate(ctx context.Context, t MappingTemplate) (*MappingTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// PGStore is the PostgreSQL Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const upsertResultSQL = `
INSERT INTO race_results (
    race_id, bib_number, athlete_name, gender, category,
    finish_time, gun_time, net_time, status, finish_seconds,
    custom_fields, import_id, updated_at
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::uuid, now())
ON CONFLICT (race_id, bib_number) DO UPDATE SET
    athlete_name   = EXCLUDED.athlete_name,
    gender         = EXCLUDED.gender,
    category       = EXCLUDED.category,
    finish_time    = EXCLUDED.finish_time,
    gun_time       = EXCLUDED.gun_time,
    net_time       = EXCLUDED.net_time,
    status         = EXCLUDED.status,
    finish_seconds = EXCLUDED.finish_seconds,
    custom_fields  = EXCLUDED.custom_fields,
    import_id      = EXCLUDED.import_id,
    updated_at     = now()`

// UpsertResults sends all rows as one pgx batch inside a transaction.
func (s *PGStore) UpsertResults(ctx context.Context, raceID, importID string, rows []results.ParsedResult) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	for _, r := range rows {
		custom, err := json.Marshal(customFieldsOrEmpty(r.CustomFields))
		if err != nil {
			return fmt.Errorf("marshal custom fields for bib %d: %w", r.BibNumber, err)
		}
		batch.Queue(upsertResultSQL,
			raceID, r.BibNumber, r.AthleteName, r.Gender, r.Category,
			r.FinishTime, r.GunTime, r.NetTime, string(r.Status), finishSeconds(r),
			custom, importID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert bib %d: %w", r.BibNumber, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// finishSeconds is the ranking key, nil when the time is unknown.
func finishSeconds(r results.ParsedResult) *int {
	if r.FinishTime == "" {
		return nil
	}
	secs, err := results.TimeToSeconds(r.FinishTime)
	if err != nil {
		return nil
	}
	return &secs
}

func customFieldsOrEmpty(c results.CustomFields) results.CustomFields {
	if c == nil {
		return results.CustomFields{}
	}
	return c
}

// ListResults returns a race's results, ranked rows first.
func (s *PGStore) ListResults(ctx context.Context, raceID string) ([]StoredResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT race_id::text, bib_number, athlete_name, gender, category,
			finish_time, gun_time, net_time, status, finish_seconds, custom_fields,
			overall_rank, gender_rank, category_rank, COALESCE(import_id::text, ''), updated_at
		FROM race_results
		WHERE race_id = $1::uuid
		ORDER BY overall_rank NULLS LAST, finish_seconds NULLS LAST, bib_number`, raceID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]StoredResult, 0)
	for rows.Next() {
		var (
			r      StoredResult
			status string
			custom []byte
		)
		if err := rows.Scan(&r.RaceID, &r.BibNumber, &r.AthleteName, &r.Gender, &r.Category,
			&r.FinishTime, &r.GunTime, &r.NetTime, &status, &r.FinishSeconds, &custom,
			&r.OverallRank, &r.GenderRank, &r.CategoryRank, &r.ImportID, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = results.Status(status)
		if len(custom) > 0 {
			if err := json.Unmarshal(custom, &r.CustomFields); err != nil {
				return nil, fmt.Errorf("unmarshal custom fields: %w", err)
			}
			if len(r.CustomFields) == 0 {
				r.CustomFields = nil
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordImport inserts the audit row of a finished import.
func (s *PGStore) RecordImport(ctx context.Context, rec ImportRecord) error {
	var mapping []byte
	if len(rec.Mapping) > 0 {
		b, err := json.Marshal(rec.Mapping)
		if err != nil {
			return fmt.Errorf("marshal mapping: %w", err)
		}
		mapping = b
	}
	rowErrors := rec.Errors
	if rowErrors == nil {
		rowErrors = []results.RowError{}
	}
	errJSON, err := json.Marshal(rowErrors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO result_imports (
			id, race_id, file_name, format, status, total_rows, imported, failed,
			mapping, errors, user_id, ip_address, duration_ms, created_at
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.RaceID, rec.FileName, string(rec.Format), string(rec.Status),
		rec.TotalRows, rec.Imported, rec.Failed, mapping, errJSON,
		rec.Actor.UserID, rec.Actor.IPAddress, rec.Duration.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	return nil
}

const importColumns = `id::text, race_id::text, file_name, format, status, total_rows, imported, failed,
	mapping, errors, user_id, ip_address, duration_ms, created_at`

// GetImport returns one import record.
func (s *PGStore) GetImport(ctx context.Context, id string) (*ImportRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM result_imports WHERE id = $1::uuid`, id)
	rec, err := scanImport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import: %w", err)
	}
	return rec, nil
}

// ListImports returns a race's import history, newest first.
func (s *PGStore) ListImports(ctx context.Context, raceID string, limit int) ([]ImportRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+importColumns+`
		FROM result_imports WHERE race_id = $1::uuid
		ORDER BY created_at DESC LIMIT $2`, raceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	out := make([]ImportRecord, 0)
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanImport(row pgx.Row) (*ImportRecord, error) {
	var (
		rec              ImportRecord
		format, status   string
		mapping, errJSON []byte
		durationMs       int64
	)
	if err := row.Scan(&rec.ID, &rec.RaceID, &rec.FileName, &format, &status,
		&rec.TotalRows, &rec.Imported, &rec.Failed, &mapping, &errJSON,
		&rec.Actor.UserID, &rec.Actor.IPAddress, &durationMs, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Format = results.Format(format)
	rec.Status = ImportPhase(status)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &rec.Mapping); err != nil {
			return nil, fmt.Errorf("unmarshal mapping: %w", err)
		}
	}
	if err := json.Unmarshal(errJSON, &rec.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	return &rec, nil
}

const templateColumns = `id::text, name, headers, mapping, separator, created_at, updated_at`

// CreateTemplate inserts a template. The caller assigns the ID.
func (s *PGStore) CreateTemplate(ctx context.Context, t MappingTemplate) (*MappingTemplate, error) {
	headers, mapping, err := marshalTemplate(t)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO mapping_templates (id, name, headers, mapping, separator)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING `+templateColumns,
		t.ID, t.Name, headers, mapping, t.Separator)
	out, err := scanTemplate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTemplateExists
		}
		return nil, fmt.Errorf("create template: %w", err)
	}
	return out, nil
}

// GetTemplate returns one template.
func (s *PGStore) GetTemplate(ctx context.Context, id string) (*MappingTemplate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM mapping_templates WHERE id = $1::uuid`, id)
	out, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return out, nil
}

// ListTemplates returns all templates by name.
func (s *PGStore) ListTemplates(ctx context.Context) ([]MappingTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM mapping_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := make([]MappingTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTemplate replaces a template's name, headers, mapping and separator.
func (s *PGStore) UpdateTemplate(ctx context.Context, t MappingTemplate) (*MappingTemplate, error) {
	headers, mapping, err := marshalTemplate(t)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE mapping_templates
		SET name = $2, headers = $3, mapping = $4, separator = $5, updated_at = now()
		WHERE id = $1::uuid
		RETURNING `+templateColumns,
		t.ID, t.Name, headers, mapping, t.Separator)
	out, err := scanTemplate(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrTemplateNotFound
	case isUniqueViolation(err):
		return nil, ErrTemplateExists
	case err != nil:
		return nil, fmt.Errorf("update template: %w", err)
	}
	return out, nil
}

// DeleteTemplate removes a template.
func (s *PGStore) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mapping_templates WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func marshalTemplate(t MappingTemplate) (headers, mapping []byte, err error) {
	if t.Headers == nil {
		t.Headers = []string{}
	}
	headers, err = json.Marshal(t.Headers)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal headers: %w", err)
	}
	mapping, err = json.Marshal(t.Mapping)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal mapping: %w", err)
	}
	return headers, mapping, nil
}

func scanTemplate(row pgx.Row) (*MappingTemplate, error) {
	var (
		t                MappingTemplate
		headers, mapping []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &headers, &mapping, &t.Separator, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(headers, &t.Headers); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(mapping, &t.Mapping); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

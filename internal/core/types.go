package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// ImportPhase indicates the current stage of import processing.
type ImportPhase string

const (
	PhaseStarting  ImportPhase = "starting"
	PhaseReading   ImportPhase = "reading"
	PhaseParsing   ImportPhase = "parsing"
	PhaseInserting ImportPhase = "inserting"
	PhaseAuditing  ImportPhase = "auditing"
	PhaseRanking   ImportPhase = "ranking"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
	PhaseCancelled ImportPhase = "cancelled"
)

// Terminal reports whether no further progress will follow.
func (p ImportPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// ImportProgress is a snapshot of a running import.
type ImportProgress struct {
	ImportID  string         `json:"importId"`
	RaceID    string         `json:"raceId"`
	FileName  string         `json:"fileName"`
	Phase     ImportPhase    `json:"phase"`
	Format    results.Format `json:"format,omitempty"`
	TotalRows int            `json:"totalRows"`
	Processed int            `json:"processed"`
	Imported  int            `json:"imported"`
	Failed    int            `json:"failed"`
	Error     string         `json:"error,omitempty"`
}

// Percent returns the insert progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.TotalRows <= 0 {
		return 0
	}
	return (p.Processed * 100) / p.TotalRows
}

// ImportRequest describes one uploaded results file.
type ImportRequest struct {
	RaceID   string
	FileName string
	Content  []byte

	// Mapping switches to the mapped parser when non-empty.
	Mapping   results.ColumnMapping
	Separator string

	// TemplateName saves Mapping as a reusable template after a successful import.
	TemplateName string

	Actor Actor
}

// Actor identifies who started an import.
type Actor struct {
	UserID    string `json:"userId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// ImportResult contains the final outcome of an import.
type ImportResult struct {
	ImportID  string             `json:"importId"`
	RaceID    string             `json:"raceId"`
	FileName  string             `json:"fileName"`
	Format    results.Format     `json:"format"`
	Status    ImportPhase        `json:"status"`
	TotalRows int                `json:"totalRows"`
	Imported  int                `json:"imported"`
	Failed    int                `json:"failed"`
	Errors    []results.RowError `json:"errors"`
	Ranked    bool               `json:"ranked"`
	Duration  time.Duration      `json:"duration"`
	Error     string             `json:"error,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// ImportRecord is the persisted audit row of a finished import.
type ImportRecord struct {
	ID        string                `json:"id"`
	RaceID    string                `json:"raceId"`
	FileName  string                `json:"fileName"`
	Format    results.Format        `json:"format"`
	Status    ImportPhase           `json:"status"`
	TotalRows int                   `json:"totalRows"`
	Imported  int                   `json:"imported"`
	Failed    int                   `json:"failed"`
	Mapping   results.ColumnMapping `json:"mapping,omitempty"`
	Errors    []results.RowError    `json:"errors"`
	Actor     Actor                 `json:"actor"`
	Duration  time.Duration         `json:"duration"`
	CreatedAt time.Time             `json:"createdAt"`
}

// StoredResult is a race result as persisted, with computed ranks.
type StoredResult struct {
	results.ParsedResult
	RaceID        string    `json:"raceId"`
	ImportID      string    `json:"importId"`
	FinishSeconds *int      `json:"finishSeconds,omitempty"`
	OverallRank   *int      `json:"overallRank,omitempty"`
	GenderRank    *int      `json:"genderRank,omitempty"`
	CategoryRank  *int      `json:"categoryRank,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MappingTemplate is a saved column mapping for a recurring export layout.
type MappingTemplate struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Headers   []string              `json:"headers"`
	Mapping   results.ColumnMapping `json:"mapping"`
	Separator string                `json:"separator,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// TemplateMatch is a template scored against a file's header row.
type TemplateMatch struct {
	Template   MappingTemplate `json:"template"`
	MatchScore float64         `json:"matchScore"`
}

// MappingSource says where a suggested mapping came from.
type MappingSource string

const (
	SourceTemplate MappingSource = "template"
	SourcePreset   MappingSource = "preset"
	SourceKeywords MappingSource = "keywords"
)

// MappingSuggestion is a pre-filled mapping for the mapping dialog.
type MappingSuggestion struct {
	Mapping   results.ColumnMapping `json:"mapping"`
	Separator string                `json:"separator,omitempty"`
	Source    MappingSource         `json:"source"`
	Name      string                `json:"name,omitempty"`
	Score     float64               `json:"score,omitempty"`
}

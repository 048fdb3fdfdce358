package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/raceresults/internal/results"
)

// MemStore is an in-memory Store for tests and local runs without a
// database. It does not compute ranks.
type MemStore struct {
	mu        sync.Mutex
	results   map[string]map[int]StoredResult
	imports   map[string]ImportRecord
	templates map[string]MappingTemplate

	// UpsertHook, when set, runs before each UpsertResults call; a non-nil
	// error fails the call without writing.
	UpsertHook func(rows []results.ParsedResult) error
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		results:   make(map[string]map[int]StoredResult),
		imports:   make(map[string]ImportRecord),
		templates: make(map[string]MappingTemplate),
	}
}

func (m *MemStore) UpsertResults(ctx context.Context, raceID, importID string, rows []results.ParsedResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	hook := m.UpsertHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(rows); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	race, ok := m.results[raceID]
	if !ok {
		race = make(map[int]StoredResult)
		m.results[raceID] = race
	}
	now := time.Now().UTC()
	for _, r := range rows {
		race[r.BibNumber] = StoredResult{
			ParsedResult:  r,
			RaceID:        raceID,
			ImportID:      importID,
			FinishSeconds: finishSeconds(r),
			UpdatedAt:     now,
		}
	}
	return nil
}

func (m *MemStore) ListResults(_ context.Context, raceID string) ([]StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]StoredResult, 0, len(m.results[raceID]))
	for _, r := range m.results[raceID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BibNumber < out[j].BibNumber })
	return out, nil
}

func (m *MemStore) RecordImport(_ context.Context, rec ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[rec.ID] = rec
	return nil
}

func (m *MemStore) GetImport(_ context.Context, id string) (*ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.imports[id]
	if !ok {
		return nil, ErrImportNotFound
	}
	return &rec, nil
}

func (m *MemStore) ListImports(_ context.Context, raceID string, limit int) ([]ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ImportRecord, 0)
	for _, rec := range m.imports {
		if rec.RaceID == raceID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) CreateTemplate(_ context.Context, t MappingTemplate) (*MappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nameTaken(t.Name, "") {
		return nil, ErrTemplateExists
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	m.templates[t.ID] = t
	return &t, nil
}

func (m *MemStore) GetTemplate(_ context.Context, id string) (*MappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

func (m *MemStore) ListTemplates(_ context.Context) ([]MappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MappingTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) UpdateTemplate(_ context.Context, t MappingTemplate) (*MappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.templates[t.ID]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	if m.nameTaken(t.Name, t.ID) {
		return nil, ErrTemplateExists
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	m.templates[t.ID] = t
	return &t, nil
}

func (m *MemStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(m.templates, id)
	return nil
}

// nameTaken mirrors the unique index on mapping_templates.name.
func (m *MemStore) nameTaken(name, exceptID string) bool {
	for id, t := range m.templates {
		if id != exceptID && t.Name == name {
			return true
		}
	}
	return false
}

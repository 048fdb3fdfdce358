package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/google/uuid"
)

// TemplateMatchThreshold is the minimum score for a template to be considered a match.
const TemplateMatchThreshold = 0.7

// CreateTemplate saves a new mapping template.
func (s *Service) CreateTemplate(ctx context.Context, name string, headers []string, mapping results.ColumnMapping, separator string) (*MappingTemplate, error) {
	t, err := newTemplate(name, headers, mapping, separator)
	if err != nil {
		return nil, err
	}
	t.ID = uuid.New().String()
	return s.store.CreateTemplate(ctx, t)
}

// GetTemplate retrieves a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id string) (*MappingTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTemplateNotFound
	}
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns all templates by name.
func (s *Service) ListTemplates(ctx context.Context) ([]MappingTemplate, error) {
	return s.store.ListTemplates(ctx)
}

// UpdateTemplate replaces a template's content.
func (s *Service) UpdateTemplate(ctx context.Context, id, name string, headers []string, mapping results.ColumnMapping, separator string) (*MappingTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTemplateNotFound
	}
	t, err := newTemplate(name, headers, mapping, separator)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return s.store.UpdateTemplate(ctx, t)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrTemplateNotFound
	}
	return s.store.DeleteTemplate(ctx, id)
}

// SaveTemplate creates the named template or overwrites the one that
// already has that name (compared case-insensitively).
func (s *Service) SaveTemplate(ctx context.Context, name string, headers []string, mapping results.ColumnMapping, separator string) (*MappingTemplate, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(name)) {
			return s.UpdateTemplate(ctx, t.ID, t.Name, headers, mapping, separator)
		}
	}
	return s.CreateTemplate(ctx, name, headers, mapping, separator)
}

// MatchTemplates finds templates whose headers match the given headers.
// Returns matches with score >= TemplateMatchThreshold, best first.
func (s *Service) MatchTemplates(ctx context.Context, headers []string) ([]TemplateMatch, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]TemplateMatch, 0)
	for _, t := range templates {
		score := matchTemplateHeaders(headers, t.Headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{
				Template:   t,
				MatchScore: score,
			})
		}
	}

	// Sort by score descending
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})

	return matches, nil
}

// SuggestMapping pre-fills the mapping dialog for a header row. A matching
// saved template wins, then a matching preset, then keyword matching.
func (s *Service) SuggestMapping(ctx context.Context, headers []string) (MappingSuggestion, error) {
	matches, err := s.MatchTemplates(ctx, headers)
	if err != nil {
		return MappingSuggestion{}, err
	}
	if len(matches) > 0 {
		best := matches[0]
		return MappingSuggestion{
			Mapping:   remapByHeaders(best.Template.Mapping, best.Template.Headers, headers),
			Separator: best.Template.Separator,
			Source:    SourceTemplate,
			Name:      best.Template.Name,
			Score:     best.MatchScore,
		}, nil
	}

	var (
		bestPreset = -1
		bestScore  float64
	)
	for i, p := range s.presets.Presets {
		score := matchTemplateHeaders(headers, p.Headers)
		if score >= TemplateMatchThreshold && score > bestScore {
			bestPreset, bestScore = i, score
		}
	}
	if bestPreset >= 0 {
		p := s.presets.Presets[bestPreset]
		return MappingSuggestion{
			Mapping:   remapByHeaders(results.ColumnMapping(p.Mapping), p.Headers, headers),
			Separator: p.Separator,
			Source:    SourcePreset,
			Name:      p.Name,
			Score:     bestScore,
		}, nil
	}

	return MappingSuggestion{
		Mapping: results.SuggestMapping(headers),
		Source:  SourceKeywords,
	}, nil
}

func newTemplate(name string, headers []string, mapping results.ColumnMapping, separator string) (MappingTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MappingTemplate{}, fmt.Errorf("%w: template name is required", ErrInvalidMapping)
	}
	if err := validateMapping(mapping); err != nil {
		return MappingTemplate{}, err
	}
	if headers == nil {
		headers = []string{}
	}
	return MappingTemplate{
		Name:      name,
		Headers:   headers,
		Mapping:   mapping,
		Separator: separator,
	}, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// matchTemplateHeaders returns the share of template headers present in
// headers.
func matchTemplateHeaders(headers, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[normalizeHeader(h)] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if set[normalizeHeader(h)] {
			matched++
		}
	}

	return float64(matched) / float64(len(templateHeaders))
}

// remapByHeaders moves a mapping recorded against from onto the columns
// of to, following header names. Fields whose header is missing from to
// are dropped. Without recorded headers the mapping is used as is.
func remapByHeaders(mapping results.ColumnMapping, from, to []string) results.ColumnMapping {
	if len(from) == 0 {
		return mapping
	}

	positions := make(map[string]int, len(to))
	for i, h := range to {
		key := normalizeHeader(h)
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	out := results.ColumnMapping{}
	for field, idx := range mapping {
		if idx < 0 || idx >= len(from) {
			continue
		}
		if pos, ok := positions[normalizeHeader(from[idx])]; ok {
			out[field] = pos
		}
	}
	return out
}

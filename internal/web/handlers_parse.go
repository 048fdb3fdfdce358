package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/results"
)

type detectResponse struct {
	FileName    string         `json:"fileName"`
	Format      results.Format `json:"format"`
	Spreadsheet bool           `json:"spreadsheet"`
	Headers     []string       `json:"headers"`
}

// handleDetect reports the format of an uploaded file and its header row.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	text, err := s.decode(form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	format := results.Detect(form.FileName, text)
	headers := results.HeaderCells(format, text)
	if headers == nil {
		headers = []string{}
	}

	writeJSON(w, detectResponse{
		FileName:    form.FileName,
		Format:      format,
		Spreadsheet: results.IsSpreadsheet(form.FileName),
		Headers:     headers,
	})
}

type parseResponse struct {
	Format           results.Format         `json:"format"`
	Results          []results.ParsedResult `json:"results"`
	Errors           []results.RowError     `json:"errors"`
	TotalResults     int                    `json:"totalResults"`
	TotalErrors      int                    `json:"totalErrors"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
}

// handleParse parses an uploaded file and returns every result without
// storing anything. A "mapping" field switches to the mapped parser.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	form, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	text, err := s.decode(form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	format := results.Detect(form.FileName, text)
	var parsed results.ParseResult
	if len(form.Mapping) > 0 {
		if !form.Mapping.Has(results.FieldBib) {
			s.respondError(w, r, core.ErrInvalidMapping)
			return
		}
		parsed = results.ParseWithMapping(text, form.Mapping, core.MappedSeparator(form.FileName, form.Separator))
	} else {
		parsed = results.ParseAs(format, text)
	}

	writeJSON(w, parseResponse{
		Format:           format,
		Results:          parsed.Results,
		Errors:           parsed.Errors,
		TotalResults:     len(parsed.Results),
		TotalErrors:      len(parsed.Errors),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}

// handlePreview shows what an import would produce.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	preview, err := s.service.Preview(r.Context(), core.PreviewRequest{
		FileName:  form.FileName,
		Content:   form.Content,
		Mapping:   form.Mapping,
		Separator: form.Separator,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, preview)
}

// handleMappingFields lists the keys the mapping dialog offers. Other keys
// are kept as custom fields.
func (s *Server) handleMappingFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"fields":   results.StandardFields(),
		"required": []string{results.FieldBib},
	})
}

// handleSuggestMapping pre-fills the mapping dialog for a header row.
func (s *Server) handleSuggestMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Headers []string `json:"headers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errInvalidBody)
		return
	}
	if len(req.Headers) == 0 {
		s.respondError(w, r, errMissingHeader)
		return
	}

	suggestion, err := s.service.SuggestMapping(r.Context(), req.Headers)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, suggestion)
}

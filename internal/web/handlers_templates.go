package web

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/go-chi/chi/v5"
)

type templateRequest struct {
	Name      string                `json:"name"`
	Headers   []string              `json:"headers"`
	Mapping   results.ColumnMapping `json:"mapping"`
	Separator string                `json:"separator"`
}

func decodeTemplateRequest(r *http.Request) (*templateRequest, error) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errInvalidBody
	}
	return &req, nil
}

// handleListTemplates returns all mapping templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListTemplates(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, list)
}

// handleMatchTemplates scores templates against ?headers=a,b,c.
func (s *Server) handleMatchTemplates(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("headers")
	if raw == "" {
		s.respondError(w, r, errMissingHeader)
		return
	}

	matches, err := s.service.MatchTemplates(r.Context(), splitHeaders(raw))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, matches)
}

// handleGetTemplate returns a single mapping template.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, t)
}

// handleCreateTemplate saves a new mapping template.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTemplateRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.CreateTemplate(r.Context(), req.Name, req.Headers, req.Mapping, req.Separator)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("mapping template created",
		"template_id", t.ID,
		"name", t.Name,
		"user", core.GetUserIDFromContext(WithRequestMetadata(r.Context(), r)),
	)
	writeJSONStatus(w, http.StatusCreated, t)
}

// handleUpdateTemplate replaces a mapping template.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTemplateRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), req.Name, req.Headers, req.Mapping, req.Separator)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, t)
}

// handleDeleteTemplate removes a mapping template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.DeleteTemplate(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("mapping template deleted", "template_id", id)
	w.WriteHeader(http.StatusNoContent)
}

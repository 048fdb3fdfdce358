package web

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// summaryErrorRows is how many row errors the HTMX summary lists.
const summaryErrorRows = 10

type startImportResponse struct {
	ImportID    string `json:"importId"`
	ProgressURL string `json:"progressUrl"`
	ResultURL   string `json:"resultUrl"`
}

// handleStartImport accepts a results file for a race and starts the import
// in the background.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "raceID")

	form, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	importID, err := s.service.StartImport(ctx, core.ImportRequest{
		RaceID:       raceID,
		FileName:     form.FileName,
		Content:      form.Content,
		Mapping:      form.Mapping,
		Separator:    form.Separator,
		TemplateName: form.TemplateName,
		Actor:        core.ActorFromContext(ctx),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("import accepted",
		"import_id", importID,
		"race_id", raceID,
		"file", form.FileName,
		"bytes", len(form.Content),
	)

	writeJSONStatus(w, http.StatusAccepted, startImportResponse{
		ImportID:    importID,
		ProgressURL: "/api/imports/" + importID + "/progress",
		ResultURL:   "/api/imports/" + importID,
	})
}

// handleListImports returns a race's import history.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "raceID")

	records, err := s.service.ListImports(r.Context(), raceID, parseIntParam(r, "limit", 0))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.ImportHistory(records).Render(r.Context(), w)
		return
	}
	writeJSON(w, records)
}

// handleListResults returns the stored results of a race with their ranks.
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	stored, err := s.service.ListResults(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, stored)
}

// handleImportProgress streams progress via Server-Sent Events, then a
// final "complete" event carrying the import result.
// Clients that reconnect send lastEventId (the percentage already seen)
// and only get newer events.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID, resumed := -1, false
	if n, err := strconv.Atoi(lastEventIDStr); err == nil {
		lastEventID, resumed = n, true
	}

	progressCh, unsubscribe, err := s.service.SubscribeProgress(importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unsubscribe()

	logger := logging.WithFields(r.Context(), "import_id", importID, "resumed", resumed)
	logger.Debug("progress stream opened", "last_event_id", lastEventID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				s.writeCompleteEvent(w, r, importID)
				flusher.Flush()
				return
			}

			percent := progress.Percent()
			if resumed && percent <= lastEventID && !progress.Phase.Terminal() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			logger.Debug("progress stream closed by client")
			return
		}
	}
}

func (s *Server) writeCompleteEvent(w http.ResponseWriter, r *http.Request, importID string) {
	res, err := s.service.GetImportResult(r.Context(), importID)
	if err != nil {
		fmt.Fprint(w, "event: complete\ndata: {}\n\n")
		return
	}
	data, _ := json.Marshal(res)
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
}

// handleGetImport returns the result of a finished import, or 202 with the
// current progress while it runs.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if progress, err := s.service.GetImportProgress(importID); err == nil && !progress.Phase.Terminal() {
		writeJSONStatus(w, http.StatusAccepted, progress)
		return
	}

	res, err := s.service.GetImportResult(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.ImportSummary(*res, summaryErrorRows).Render(r.Context(), w)
		return
	}
	writeJSON(w, res)
}

// handleCancelImport cancels an in-progress import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.CancelImport(importID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import cancel requested", "import_id", importID)
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleExportErrors downloads the row errors of an import as CSV.
func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	res, err := s.service.GetImportResult(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-%s-errors.csv"`, importID))

	cw := csv.NewWriter(w)
	cw.Write([]string{"row", "error"})
	for _, e := range res.Errors {
		cw.Write([]string{strconv.Itoa(e.Row), e.Error})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("errors export failed", "import_id", importID, "error", err)
	}
}

package web

// errors.go renders every handler error the same way: the technical error
// is logged with the request ID, the client gets core.MapError's message
// and code as JSON, an HTMX alert fragment, or plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/web/templates"
)

// ErrorResponse is the JSON body of API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile        = errors.New("no file provided")
	errInvalidForm   = errors.New("invalid upload form")
	errInvalidBody   = errors.New("invalid request body")
	errMissingHeader = errors.New("missing headers parameter")
)

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrImportNotFound), errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportFinished), errors.Is(err, core.ErrTemplateExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidRaceID),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrUnreadableSpreadsheet),
		errors.Is(err, core.ErrInvalidMapping),
		errors.Is(err, errNoFile),
		errors.Is(err, errInvalidForm),
		errors.Is(err, errInvalidBody),
		errors.Is(err, errMissingHeader):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case strings.Contains(err.Error(), "unknown charset"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message with the status
// from statusFor.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, status)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, status)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", status)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorPartial answers HTMX with 200 so the alert is swapped in; the
// real status travels in a header.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Reswap", "innerHTML")
	w.Header().Set("X-Error-Status", http.StatusText(status))
	w.WriteHeader(http.StatusOK)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes default to it.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/results"
)

// multipartOverhead leaves room for form fields around the file part.
const multipartOverhead = 1 << 20

// uploadForm is a multipart results upload: the "file" part plus the
// optional "mapping" (JSON object), "separator" and "templateName" fields.
type uploadForm struct {
	FileName     string
	Content      []byte
	Mapping      results.ColumnMapping
	Separator    string
	TemplateName string
}

// readUpload reads the multipart form, capping the body at the configured
// import size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	limit := int64(s.cfg.Import.MaxFileSize)
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit is %s", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize)
		}
		return nil, fmt.Errorf("%w: %v", errInvalidForm, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(content)) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit is %s", core.ErrFileTooLarge, len(content), s.cfg.Import.MaxFileSize)
	}

	mapping, err := parseMapping(r.FormValue("mapping"))
	if err != nil {
		return nil, err
	}

	return &uploadForm{
		FileName:     header.Filename,
		Content:      content,
		Mapping:      mapping,
		Separator:    r.FormValue("separator"),
		TemplateName: strings.TrimSpace(r.FormValue("templateName")),
	}, nil
}

// parseMapping decodes a {"field": column} JSON object. Empty input means
// no mapping.
func parseMapping(raw string) (results.ColumnMapping, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var mapping results.ColumnMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidMapping, err)
	}
	return mapping, nil
}

// decode turns an upload into text the parsers accept.
func (s *Server) decode(form *uploadForm) (string, error) {
	if len(form.Content) == 0 {
		return "", core.ErrEmptyFile
	}
	return core.DecodeContent(form.FileName, form.Content, s.cfg.Import.LegacyCharset)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// splitHeaders splits a comma-separated header list from a query string.
func splitHeaders(raw string) []string {
	parts := strings.Split(raw, ",")
	headers := make([]string, 0, len(parts))
	for _, p := range parts {
		headers = append(headers, strings.TrimSpace(p))
	}
	return headers
}

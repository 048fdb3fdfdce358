package web

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForImport polls the import endpoint until it stops answering 202.
func waitForImport(t *testing.T, env *testEnv, id string) core.ImportResult {
	t.Helper()
	var rec *httptest.ResponseRecorder
	require.Eventually(t, func() bool {
		rec = env.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil))
		return rec.Code != http.StatusAccepted
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeJSON[core.ImportResult](t, rec)
}

func startImport(t *testing.T, env *testEnv, filename, content string) string {
	t.Helper()
	rec := env.do(uploadRequest(t, http.MethodPost, "/api/races/"+testRaceID+"/imports", filename, content, nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decodeJSON[startImportResponse](t, rec)
	assert.Equal(t, "/api/imports/"+resp.ImportID+"/progress", resp.ProgressURL)
	return resp.ImportID
}

func TestDetect(t *testing.T) {
	env := newTestEnv(t, testConfig())

	tests := []struct {
		name        string
		filename    string
		content     string
		wantFormat  results.Format
		wantHeaders []string
	}{
		{"csv", "resultats.csv", threeFinishers, results.FormatCSV, strings.Split(frenchHeader, ",")},
		{"html", "export.html", "<table><tr><th>Dossard</th><th>Nom</th></tr><tr><td>1</td><td>A</td></tr></table>", results.FormatHTML, []string{"Dossard", "Nom"}},
		{"ffa text", "ffa-2024.txt", "\n", results.FormatFFAText, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(uploadRequest(t, http.MethodPost, "/api/detect", tt.filename, tt.content, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			got := decodeJSON[detectResponse](t, rec)
			assert.Equal(t, tt.wantFormat, got.Format)
			assert.Equal(t, tt.wantHeaders, got.Headers)
			assert.False(t, got.Spreadsheet)
		})
	}
}

func TestDetect_UploadErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 64
	env := newTestEnv(t, cfg)

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		code     string
	}{
		{"no file", "", "", http.StatusBadRequest, "FILE004"},
		{"empty file", "a.csv", "", http.StatusBadRequest, "FILE002"},
		{"too large", "a.csv", strings.Repeat("x", 65), http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(uploadRequest(t, http.MethodPost, "/api/detect", tt.filename, tt.content, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeJSON[ErrorResponse](t, rec).Code)
		})
	}
}

func TestParse(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, http.MethodPost, "/api/parse", "resultats.csv", fakeResults(25), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeJSON[parseResponse](t, rec)
	assert.Equal(t, results.FormatCSV, got.Format)
	assert.Equal(t, 25, got.TotalResults)
	assert.Zero(t, got.TotalErrors)
	for _, r := range got.Results {
		assert.NotEmpty(t, r.AthleteName)
		assert.True(t, results.ValidateTimeFormat(r.FinishTime), r.FinishTime)
	}

	stored, err := env.service.ListResults(context.Background(), testRaceID)
	require.NoError(t, err)
	assert.Empty(t, stored, "parse stores nothing")
}

func TestParse_WithMapping(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, http.MethodPost, "/api/parse", "chrono.txt",
		"Dossard;Nom complet;Temps\n12;Jean DUPONT;45:12\n",
		map[string]string{"mapping": `{"bib":0,"fullName":1,"finishTime":2}`, "separator": ";"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeJSON[parseResponse](t, rec)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 12, got.Results[0].BibNumber)
	assert.Equal(t, "Jean DUPONT", got.Results[0].AthleteName)
	assert.Equal(t, "00:45:12", got.Results[0].FinishTime)

	for _, mapping := range []string{`{"fullName":1}`, `not json`} {
		rec := env.do(uploadRequest(t, http.MethodPost, "/api/parse", "chrono.txt", "1;A;45:12\n",
			map[string]string{"mapping": mapping}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, mapping)
		assert.Equal(t, "MAP001", decodeJSON[ErrorResponse](t, rec).Code, mapping)
	}
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, http.MethodPost, "/api/preview", "resultats.csv", threeFinishers, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeJSON[core.Preview](t, rec)
	assert.Equal(t, 3, got.TotalResults)
	assert.Len(t, got.Sample, 2)
	require.NotNil(t, got.Suggestion)
	assert.Equal(t, core.SourceKeywords, got.Suggestion.Source)
}

func TestMappingFields(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/mapping/fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeJSON[struct {
		Fields   []string `json:"fields"`
		Required []string `json:"required"`
	}](t, rec)
	assert.Contains(t, got.Fields, results.FieldFinishTime)
	assert.Contains(t, got.Fields, results.FieldClub)
	assert.Equal(t, []string{results.FieldBib}, got.Required)
}

func TestSuggestMapping(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/mapping/suggest", map[string]any{
		"headers": []string{"Clt", "Dossard", "Nom", "Prénom", "Temps"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeJSON[core.MappingSuggestion](t, rec)
	assert.Equal(t, core.SourceKeywords, got.Source)
	assert.Equal(t, 1, got.Mapping[results.FieldBib])

	rec = env.do(jsonRequest(t, http.MethodPost, "/api/mapping/suggest", map[string]any{"headers": []string{}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig())

	id := startImport(t, env, "resultats.csv", threeFinishers+"104,,,,,00:50:00\n")
	res := waitForImport(t, env, id)

	assert.Equal(t, core.PhaseComplete, res.Status)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 1, res.Failed)

	t.Run("results", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/races/"+testRaceID+"/results", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		stored := decodeJSON[[]core.StoredResult](t, rec)
		require.Len(t, stored, 3)
		assert.Equal(t, 101, stored[0].BibNumber)
		require.NotNil(t, stored[0].FinishSeconds)
		assert.Equal(t, 45*60+12, *stored[0].FinishSeconds)
	})

	t.Run("history json", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/races/"+testRaceID+"/imports?limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		records := decodeJSON[[]core.ImportRecord](t, rec)
		require.Len(t, records, 1)
		assert.Equal(t, id, records[0].ID)
	})

	t.Run("history htmx", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/races/"+testRaceID+"/imports", nil)
		req.Header.Set("HX-Request", "true")
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<table")
		assert.Contains(t, rec.Body.String(), "resultats.csv")
		assert.Contains(t, rec.Body.String(), "Terminé")
	})

	t.Run("summary htmx", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil)
		req.Header.Set("HX-Request", "true")
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Ligne 5 : Nom athlète manquant")
		assert.Contains(t, rec.Body.String(), "/api/imports/"+id+"/errors.csv")
	})

	t.Run("errors csv", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+id+"/errors.csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "errors.csv")

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"row", "error"}, {"5", "Nom athlète manquant"}}, rows)
	})

	t.Run("cancel after finish", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodPost, "/api/imports/"+id+"/cancel", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "IMP003", decodeJSON[ErrorResponse](t, rec).Code)
	})
}

func TestImportProgress_Stream(t *testing.T) {
	env := newTestEnv(t, testConfig())

	id := startImport(t, env, "resultats.csv", threeFinishers)
	waitForImport(t, env, id)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+id+"/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "id: 100\nevent: progress\n")
	assert.Contains(t, body, `"phase":"complete"`)
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"imported":3`)
	assert.Less(t, strings.Index(body, "event: progress"), strings.Index(body, "event: complete"))
}

func TestImportProgress_Resume(t *testing.T) {
	env := newTestEnv(t, testConfig())

	id := startImport(t, env, "resultats.csv", threeFinishers)
	waitForImport(t, env, id)

	// The terminal snapshot is always replayed, even when already seen.
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+id+"/progress?lastEventId=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"complete"`)
}

func TestImportNotFound(t *testing.T) {
	env := newTestEnv(t, testConfig())

	for _, path := range []string{
		"/api/imports/" + testRaceID,
		"/api/imports/unknown/progress",
		"/api/imports/" + testRaceID + "/errors.csv",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "IMP002", decodeJSON[ErrorResponse](t, rec).Code, path)
	}

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/imports/unknown/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartImport_Validation(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, http.MethodPost, "/api/races/not-a-race/imports", "resultats.csv", threeFinishers, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RACE001", decodeJSON[ErrorResponse](t, rec).Code)

	rec = env.do(uploadRequest(t, http.MethodPost, "/api/races/"+testRaceID+"/imports", "resultats.csv", threeFinishers,
		map[string]string{"templateName": "Chrono"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a template needs a mapping")
	assert.Equal(t, "MAP001", decodeJSON[ErrorResponse](t, rec).Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/races/not-a-race/results", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartImport_SavesTemplate(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, http.MethodPost, "/api/races/"+testRaceID+"/imports", "chrono.txt",
		"Dossard;Nom complet;Temps\n12;Jean DUPONT;45:12\n",
		map[string]string{
			"mapping":      `{"bib":0,"fullName":1,"finishTime":2}`,
			"separator":    ";",
			"templateName": "Chrono 42",
		}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	res := waitForImport(t, env, decodeJSON[startImportResponse](t, rec).ImportID)
	assert.Equal(t, 1, res.Imported)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/mapping-templates/match?headers=Dossard,Nom%20complet,Temps", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decodeJSON[[]core.TemplateMatch](t, rec)
	require.Len(t, matches, 1)
	assert.Equal(t, "Chrono 42", matches[0].Template.Name)
	assert.Equal(t, 1.0, matches[0].MatchScore)
}

func TestTemplateHandlers(t *testing.T) {
	env := newTestEnv(t, testConfig())

	body := map[string]any{
		"name":      "Chrono",
		"headers":   []string{"Dossard", "Nom", "Temps"},
		"mapping":   map[string]int{"bib": 0, "fullName": 1, "finishTime": 2},
		"separator": ";",
	}

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/mapping-templates", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[core.MappingTemplate](t, rec)
	assert.Equal(t, "Chrono", created.Name)

	rec = env.do(jsonRequest(t, http.MethodPost, "/api/mapping-templates", body))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MAP003", decodeJSON[ErrorResponse](t, rec).Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/mapping-templates/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeJSON[core.MappingTemplate](t, rec).ID)

	body["name"] = "Chrono v2"
	rec = env.do(jsonRequest(t, http.MethodPut, "/api/mapping-templates/"+created.ID, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Chrono v2", decodeJSON[core.MappingTemplate](t, rec).Name)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/mapping-templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]core.MappingTemplate](t, rec), 1)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/mapping-templates/match", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/mapping-templates/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/mapping-templates/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MAP002", decodeJSON[ErrorResponse](t, rec).Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/mapping-templates", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/raceresults/internal/web/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const finishers = "Dossard,Nom,Prénom,Sexe,Catégorie,Temps\n" +
	"101,DUPONT,Jean,H,SEM,00:45:12\n" +
	"102,MARTIN,Marie,F,SEF,00:52:30\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run(append([]string{"resultsctl"}, args...))
	return stdout.String(), err
}

func TestDetect(t *testing.T) {
	out, err := run(t, "detect", writeFile(t, "resultats.csv", finishers))
	require.NoError(t, err)

	var got struct {
		File    string   `json:"file"`
		Format  string   `json:"format"`
		Headers []string `json:"headers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "resultats.csv", got.File)
	assert.Equal(t, "csv", got.Format)
	assert.Equal(t, []string{"Dossard", "Nom", "Prénom", "Sexe", "Catégorie", "Temps"}, got.Headers)
}

func TestParse(t *testing.T) {
	out, err := run(t, "parse", writeFile(t, "resultats.csv", finishers+"103,,,,,00:50:00\n"))
	require.NoError(t, err)

	var got struct {
		Results []struct {
			BibNumber   int    `json:"bibNumber"`
			AthleteName string `json:"athleteName"`
		} `json:"results"`
		Errors []struct {
			Row int `json:"row"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Results, 2)
	assert.Equal(t, 101, got.Results[0].BibNumber)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 4, got.Errors[0].Row)
}

func TestParse_Mapping(t *testing.T) {
	path := writeFile(t, "chrono.txt", "Dossard;Nom complet;Temps\n12;Jean DUPONT;45:12\n")

	out, err := run(t, "parse", "--mapping", `{"bib":0,"fullName":1,"finishTime":2}`, "--separator", ";", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"athleteName": "Jean DUPONT"`)
	assert.Contains(t, out, `"finishTime": "00:45:12"`)

	_, err = run(t, "parse", "--mapping", `{"fullName":1}`, path)
	assert.ErrorContains(t, err, "invalid mapping")

	_, err = run(t, "parse", "--format", "pdf", path)
	assert.ErrorContains(t, err, "unknown format")
}

func TestParse_Spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Dossard", "Nom", "Prénom", "Temps"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{7, "DURAND", "Paul", "00:41:05"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	path := writeFile(t, "resultats.xlsx", buf.String())
	out, err := run(t, "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"bibNumber": 7`)
	assert.Contains(t, out, `"finishTime": "00:41:05"`)

	// Sheets decode to tab-delimited rows whatever separator is passed.
	out, err = run(t, "parse", "--mapping", `{"bib":0,"lastName":1,"firstName":2,"finishTime":3}`, "--separator", ";", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"athleteName": "Paul DURAND"`)
	assert.Contains(t, out, `"errors": []`)
}

func TestSuggest(t *testing.T) {
	presets := writeFile(t, "presets.yaml", `presets:
  - name: Vendor export
    headers: [Bib, Athlete, Chip]
    mapping: {bib: 0, fullName: 1, netTime: 2}
`)

	out, err := run(t, "suggest", "--presets", presets, writeFile(t, "vendor.csv", "Bib,Athlete,Chip\n1,A B,00:30:00\n"))
	require.NoError(t, err)
	assert.Contains(t, out, `"source": "preset"`)
	assert.Contains(t, out, `"name": "Vendor export"`)

	out, err = run(t, "suggest", writeFile(t, "resultats.csv", finishers))
	require.NoError(t, err)
	assert.Contains(t, out, `"source": "keywords"`)

	_, err = run(t, "suggest", writeFile(t, "ffa-2024.txt", "\n"))
	assert.ErrorContains(t, err, "no header row")
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "--secret", "s3cret", "--subject", "org-1", "--role", "admin")
	require.NoError(t, err)

	claims, err := middleware.NewAuthenticator("s3cret", "").Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "org-1", claims.Subject)
	assert.Equal(t, middleware.RoleAdmin, claims.Role)

	_, err = run(t, "token", "--secret", "s3cret", "--subject", "x", "--role", "root")
	assert.ErrorContains(t, err, "unknown role")
}

func TestArgs(t *testing.T) {
	_, err := run(t, "detect")
	assert.ErrorContains(t, err, "exactly one FILE")

	_, err = run(t, "detect", writeFile(t, "empty.csv", ""))
	assert.Error(t, err)
}

package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frenchHeader = "Dossard,Nom,Prénom,Sexe,Catégorie,Temps"

func TestParseCSV_HappyPath(t *testing.T) {
	res := ParseCSV(frenchHeader + "\n101,DUPONT,Jean,H,SEM,00:45:12\n")

	want := []ParsedResult{{
		BibNumber:   101,
		AthleteName: "Jean DUPONT",
		Gender:      "M",
		Category:    "SEM",
		FinishTime:  "00:45:12",
		Status:      StatusFinished,
	}}
	if diff := cmp.Diff(want, res.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Errors)
}

func TestParseCSV_FirstNameBeforeLastName(t *testing.T) {
	res := ParseCSV("Dossard,Prénom,Nom,Sexe,Temps\n101,Jean,DUPONT,H,00:45:12\n")

	require.Len(t, res.Results, 1)
	assert.Equal(t, "Jean DUPONT", res.Results[0].AthleteName)
	assert.Empty(t, res.Errors)
}

func TestParseCSV_MissingName(t *testing.T) {
	res := ParseCSV(frenchHeader + "\n101,DUPONT,Jean,H,SEM,00:45:12\n102,,,,,00:50:00\n")

	require.Len(t, res.Results, 1)
	assert.Equal(t, 101, res.Results[0].BibNumber)
	assert.Equal(t, []RowError{{Row: 3, Error: "Nom athlète manquant"}}, res.Errors)
}

func TestParseCSV_Status(t *testing.T) {
	content := frenchHeader + ",Statut\n" +
		"103,MARTIN,Paul,H,SEM,,Abandon\n" +
		"104,DURAND,Luc,H,SEM,,DSQ\n" +
		"105,PETIT,Marc,H,SEM,00:50:00,Bravo\n" +
		"106,ROUX,Lea,F,SEF,,non partant\n"

	res := ParseCSV(content)
	require.Empty(t, res.Errors)
	require.Len(t, res.Results, 4)

	got := map[int]Status{}
	for _, r := range res.Results {
		got[r.BibNumber] = r.Status
	}
	assert.Equal(t, map[int]Status{
		103: StatusDidNotFinish,
		104: StatusDisqualified,
		105: StatusFinished,
		106: StatusDidNotStart,
	}, got)
	assert.Empty(t, res.Results[0].FinishTime)
}

func TestParseCSV_PositionalFallback(t *testing.T) {
	res := ParseCSV("col1;col2;col3;col4;col5;col6\n7;MOREAU;Anne;F;V1F;1:02:03\n")

	want := []ParsedResult{{
		BibNumber:   7,
		AthleteName: "Anne MOREAU",
		Gender:      "F",
		Category:    "V1F",
		FinishTime:  "01:02:03",
		Status:      StatusFinished,
	}}
	if diff := cmp.Diff(want, res.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSV_TabDelimited(t *testing.T) {
	res := ParseCSV("Bib\tName\tSex\tTime\n5\tJo Smith\tF\t12:34\n")

	require.Len(t, res.Results, 1)
	assert.Equal(t, ParsedResult{
		BibNumber:   5,
		AthleteName: "Jo Smith",
		Gender:      "F",
		FinishTime:  "00:12:34",
		Status:      StatusFinished,
	}, res.Results[0])
}

func TestParseCSV_QuotedCells(t *testing.T) {
	res := ParseCSV("Dossard,Nom,Club,Temps\n8,\"DUPONT, Jean\",AC Paris,00:40:00\n")

	require.Len(t, res.Results, 1)
	assert.Equal(t, "DUPONT, Jean", res.Results[0].AthleteName)
	assert.Equal(t, "00:40:00", res.Results[0].FinishTime)
}

func TestParseCSV_Skips(t *testing.T) {
	content := frenchHeader + "\n" +
		"9,X\n" + // too few cells
		"0,ZERO,Bib,H,SEM,00:10:00\n" + // non-positive bib
		"abc,NOPE,Bib,H,SEM,00:10:00\n" + // unparseable bib
		"-4,NEG,Bib,H,SEM,00:10:00\n" +
		"\n\n" +
		"11,LAST,Row,F,SEF,00:11:00\n"

	res := ParseCSV(content)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 11, res.Results[0].BibNumber)
}

func TestParseCSV_RowsAreSourceLines(t *testing.T) {
	content := frenchHeader + "\r\n" +
		"\r\n" +
		"101,DUPONT,Jean,H,SEM,00:45:12\r\n" +
		"   \r\n" +
		"\r\n" +
		"102,,,,,00:50:00\r\n"

	res := ParseCSV(content)
	require.Len(t, res.Results, 1)
	assert.Equal(t, []RowError{{Row: 6, Error: "Nom athlète manquant"}}, res.Errors)
}

func TestParseCSV_LenientBib(t *testing.T) {
	res := ParseCSV(frenchHeader + "\n 17b ,A,B,F,SEF,00:20:00\n")
	require.Len(t, res.Results, 1)
	assert.Equal(t, 17, res.Results[0].BibNumber)
}

func TestParseCSV_NoDataRows(t *testing.T) {
	for _, content := range []string{"", "\n\n", frenchHeader, frenchHeader + "\n   \n"} {
		res := ParseCSV(content)
		assert.Empty(t, res.Results)
		assert.Equal(t, []RowError{{Row: 0, Error: "Fichier vide ou sans données"}}, res.Errors)
	}
}

func TestParseCSV_CRLF(t *testing.T) {
	res := ParseCSV("Dossard;Nom;Prénom;Sexe;Catégorie;Temps\r\n1;A;B;X;SEM;10:00\r\n")
	require.Len(t, res.Results, 1)
	assert.Equal(t, "X", res.Results[0].Gender)
	assert.Equal(t, "00:10:00", res.Results[0].FinishTime)
}

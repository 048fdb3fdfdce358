package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const elogicaExport = `<?xml version="1.0" encoding="ISO-8859-1"?>
<results race="10km">
  <result><bib>12</bib><firstname>Jean</firstname><lastname>DUPONT</lastname><gender>H</gender><category>SEM</category><time>45:12</time></result>
  <RESULT><BIB>13</BIB><FirstName>Anne</FirstName><LastName>MOREAU</LastName><Gender>F</Gender><Time>1:02:03</Time></RESULT>
  <result><firstname>No</firstname><lastname>Bib</lastname></result>
  <result><bib>15</bib></result>
  <result><bib>16</bib><lastname>FIRST</lastname><lastname>SECOND</lastname></result>
  <result><bib>17</bib><lastname>Caf&eacute; &amp; Co</lastname></result>
</results>`

func TestParseElogicaXML(t *testing.T) {
	res := ParseElogicaXML(elogicaExport)

	want := []ParsedResult{
		{BibNumber: 12, AthleteName: "Jean DUPONT", Gender: "M", Category: "SEM", FinishTime: "00:45:12", Status: StatusFinished},
		{BibNumber: 13, AthleteName: "Anne MOREAU", Gender: "F", FinishTime: "01:02:03", Status: StatusFinished},
		{BibNumber: 16, AthleteName: "FIRST", Status: StatusFinished},
		{BibNumber: 17, AthleteName: "Café & Co", Status: StatusFinished},
	}
	if diff := cmp.Diff(want, res.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []RowError{
		{Row: 3, Error: "Dossard manquant"},
		{Row: 4, Error: "Nom athlète manquant"},
	}, res.Errors)
}

func TestParseElogicaXML_NoResults(t *testing.T) {
	res := ParseElogicaXML(`<?xml version="1.0"?><results></results>`)
	assert.Empty(t, res.Results)
	assert.Equal(t, []RowError{{Row: 0, Error: "Aucun résultat trouvé dans le fichier XML"}}, res.Errors)
}

func TestParseElogicaXML_Truncated(t *testing.T) {
	res := ParseElogicaXML(`<?xml version="1.0"?><results><result><bib>5</bib><lastname>X</lastname>`)

	require.Len(t, res.Results, 1)
	assert.Equal(t, 5, res.Results[0].BibNumber)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Error, "XML invalide")
}

func TestParse_DispatchesXML(t *testing.T) {
	res := Parse("export.csv", elogicaExport)
	assert.Len(t, res.Results, 4)
}

package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     Format
	}{
		{name: "xml prologue", filename: "results.csv", content: `<?xml version="1.0"?><results/>`, want: FormatElogica},
		{name: "xml prologue after bom and blank", filename: "x.dat", content: "\uFEFF\n  <?xml version=\"1.0\"?>", want: FormatElogica},
		{name: "html in xml file", filename: "export.xml", content: "<!DOCTYPE html><html><body></body></html>", want: FormatHTML},
		{name: "bare table", filename: "results.csv", content: "<TABLE><tr><td>1</td></tr></TABLE>", want: FormatHTML},
		{name: "html marker past sniff window", filename: "results.csv", content: string(make([]byte, 120)) + "<html>", want: FormatCSV},
		{name: "elogica filename", filename: "Elogica_10km.dat", content: "1;2;3", want: FormatElogica},
		{name: "elog filename", filename: "elog-export.csv", content: "1;2;3", want: FormatElogica},
		{name: "ffa filename", filename: "resultats_FFA.csv", content: "1;2;3", want: FormatFFAText},
		{name: "e@logica filename", filename: "e@logica.dat", content: "1;2;3", want: FormatFFAText},
		{name: "xlsx", filename: "Results.XLSX", content: "", want: FormatExcel},
		{name: "xls", filename: "results.xls", content: "", want: FormatExcel},
		{name: "html extension", filename: "results.htm", content: "no markers", want: FormatHTML},
		{name: "txt", filename: "results.txt", content: "    12 DUPONT", want: FormatFFAText},
		{name: "xml extension without prologue", filename: "results.xml", content: "<results></results>", want: FormatCSV},
		{name: "fallback", filename: "results.csv", content: "Dossard;Nom", want: FormatCSV},
		{name: "no filename", filename: "", content: "", want: FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.filename, tt.content))
		})
	}
}

func TestFormat_Valid(t *testing.T) {
	for _, f := range AllFormats {
		assert.True(t, f.Valid(), f)
	}
	assert.False(t, Format("pdf").Valid())
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet("a.xlsx"))
	assert.True(t, IsSpreadsheet("A.XLS"))
	assert.False(t, IsSpreadsheet("a.csv"))
	assert.False(t, IsSpreadsheet("xlsx"))
}

package results

import "strings"

// ColumnIndices holds the zero-based position of each recognized header
// column, or -1 when the header has no such column.
type ColumnIndices struct {
	Bib       int `json:"bib"`
	Name      int `json:"name"`
	FirstName int `json:"firstName"`
	LastName  int `json:"lastName"`
	Gender    int `json:"gender"`
	Year      int `json:"year"`
	Category  int `json:"category"`
	Time      int `json:"time"`
}

var (
	bibKeywords       = []string{"dos", "doss", "bib"}
	nameKeywords      = []string{"nom", "prénom", "name", "athlete"}
	firstNameKeywords = []string{"prénom", "prenom", "first"}
	lastNameKeywords  = []string{"nom", "name"}
	genderKeywords    = []string{"sex", "sx", "genre"}
	yearKeywords      = []string{"année", "annee", "year", "birth"}
	categoryKeywords  = []string{"cat", "catégorie"}
)

// DetectColumns locates known columns in a header line. Cells are matched
// left to right by case-insensitive substring and the first cell matching
// a category keeps it.
func DetectColumns(header, delimiter string) ColumnIndices {
	return detectColumnCells(newCellSplitter(delimiter).Split(header))
}

func detectColumnCells(cells []string) ColumnIndices {
	idx := ColumnIndices{Bib: -1, Name: -1, FirstName: -1, LastName: -1, Gender: -1, Year: -1, Category: -1, Time: -1}

	for i, raw := range cells {
		h := strings.ToLower(strings.TrimSpace(raw))
		if h == "" {
			continue
		}
		if idx.Bib < 0 && containsAny(h, bibKeywords) {
			idx.Bib = i
		}
		if idx.Name < 0 && containsAny(h, nameKeywords) {
			idx.Name = i
		}
		if idx.Gender < 0 && containsAny(h, genderKeywords) {
			idx.Gender = i
		}
		if idx.Year < 0 && containsAny(h, yearKeywords) {
			idx.Year = i
		}
		if idx.Category < 0 && containsAny(h, categoryKeywords) {
			idx.Category = i
		}
		if idx.Time < 0 && isTimeHeader(h) {
			idx.Time = i
		}
	}

	// A separate first-name column completes a last-name column.
	for i, raw := range cells {
		if i == idx.Name {
			continue
		}
		if containsAny(strings.ToLower(raw), firstNameKeywords) {
			idx.FirstName = i
			break
		}
	}
	if idx.Name < 0 {
		idx.FirstName = -1
	}

	// A name column that holds the first name pairs with a later last-name
	// column, as in "Dossard,Prénom,Nom".
	if idx.Name >= 0 && containsAny(strings.ToLower(cells[idx.Name]), firstNameKeywords) {
		for i := idx.Name + 1; i < len(cells); i++ {
			h := strings.ToLower(strings.TrimSpace(cells[i]))
			if containsAny(h, lastNameKeywords) && !containsAny(h, firstNameKeywords) {
				idx.LastName = i
				break
			}
		}
	}

	return idx
}

// isTimeHeader accepts "temps", and "time" unless the cell also contains
// "mi-", which marks an intermediate split column.
func isTimeHeader(h string) bool {
	if strings.Contains(h, "temps") {
		return true
	}
	return strings.Contains(h, "time") && !strings.Contains(h, "mi-")
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

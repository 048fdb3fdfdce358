package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectColumns(t *testing.T) {
	tests := []struct {
		name   string
		header string
		delim  string
		want   ColumnIndices
	}{
		{
			name:   "french export",
			header: "Dossard,Nom,Prénom,Sexe,Catégorie,Temps",
			delim:  ",",
			want:   ColumnIndices{Bib: 0, Name: 1, FirstName: 2, LastName: -1, Gender: 3, Year: -1, Category: 4, Time: 5},
		},
		{
			name:   "english export with tabs",
			header: "Bib\tAthlete\tSex\tYear of birth\tCat\tTime",
			delim:  "\t",
			want:   ColumnIndices{Bib: 0, Name: 1, FirstName: -1, LastName: -1, Gender: 2, Year: 3, Category: 4, Time: 5},
		},
		{
			name:   "first match wins",
			header: "Doss;Dossard;Nom;Nom de club;Temps;Temps net",
			delim:  ";",
			want:   ColumnIndices{Bib: 0, Name: 2, FirstName: -1, LastName: -1, Gender: -1, Year: -1, Category: -1, Time: 4},
		},
		{
			name:   "split time column ignored",
			header: "Bib,Name,Time mi-course,Finish time",
			delim:  ",",
			want:   ColumnIndices{Bib: 0, Name: 1, FirstName: -1, LastName: -1, Gender: -1, Year: -1, Category: -1, Time: 3},
		},
		{
			name:   "temps accepted even with mi-",
			header: "Bib,Name,Temps mi-course",
			delim:  ",",
			want:   ColumnIndices{Bib: 0, Name: 1, FirstName: -1, LastName: -1, Gender: -1, Year: -1, Category: -1, Time: 2},
		},
		{
			name:   "nothing recognized",
			header: "a,b,c",
			delim:  ",",
			want:   ColumnIndices{Bib: -1, Name: -1, FirstName: -1, LastName: -1, Gender: -1, Year: -1, Category: -1, Time: -1},
		},
		{
			name:   "first name before last name",
			header: "Dossard,Prénom,Nom,Sexe,Temps",
			delim:  ",",
			want:   ColumnIndices{Bib: 0, Name: 1, FirstName: -1, LastName: 2, Gender: 3, Year: -1, Category: -1, Time: 4},
		},
		{
			name:   "case insensitive",
			header: "DOSSARD|NOM|GENRE|ANNEE",
			delim:  "|",
			want:   ColumnIndices{Bib: 0, Name: 1, FirstName: -1, LastName: -1, Gender: 2, Year: 3, Category: -1, Time: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectColumns(tt.header, tt.delim)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DetectColumns() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

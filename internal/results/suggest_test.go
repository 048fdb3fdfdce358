package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSuggestMapping(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    ColumnMapping
	}{
		{
			name:    "french timing export",
			headers: []string{"Clt", "Dossard", "Nom", "Prénom", "Sexe", "Catégorie", "Clt Cat.", "Temps", "Club"},
			want: ColumnMapping{
				FieldOverallRank:  0,
				FieldBib:          1,
				FieldLastName:     2,
				FieldFirstName:    3,
				FieldGender:       4,
				FieldCategory:     5,
				FieldCategoryRank: 6,
				FieldFinishTime:   7,
				FieldClub:         8,
			},
		},
		{
			name:    "combined name and chip time",
			headers: []string{"N° Dossard", "Nom Prénom", "Temps réel", "Temps officiel", "Nationalité"},
			want: ColumnMapping{
				FieldBib:         0,
				FieldFullName:    1,
				FieldNetTime:     2,
				FieldGunTime:     3,
				FieldNationality: 4,
			},
		},
		{
			name:    "abbreviation matched fuzzily",
			headers: []string{"Dssrd", "Nom"},
			want:    ColumnMapping{FieldBib: 0, FieldLastName: 1},
		},
		{
			name:    "split column is not the finish time",
			headers: []string{"Dossard", "Nom", "Temps mi-course", "Temps"},
			want:    ColumnMapping{FieldBib: 0, FieldLastName: 1, FieldFinishTime: 3},
		},
		{
			name:    "each field used once",
			headers: []string{"Dossard", "Dossard"},
			want:    ColumnMapping{FieldBib: 0},
		},
		{
			name:    "blank headers",
			headers: []string{"", "  "},
			want:    ColumnMapping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestMapping(tt.headers)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SuggestMapping() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

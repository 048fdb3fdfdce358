package results

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FieldBirthYear is the custom key suggested for birth-year columns.
const FieldBirthYear = "birthYear"

type suggestionRule struct {
	field    string
	keywords []string
}

// suggestionRules are checked in order against accent-folded, lowercased
// headers. Composite names come before the words they contain ("clt sexe"
// before "sexe", "prenom" before "nom").
var suggestionRules = []suggestionRule{
	{FieldGenderRank, []string{"clt sexe", "clt sx", "rang sexe", "classement sexe", "gender rank", "place sexe"}},
	{FieldCategoryRank, []string{"clt cat", "rang cat", "classement cat", "category rank", "cat rank", "place cat"}},
	{FieldOverallRank, []string{"clt", "classement", "rang", "rank", "place", "scratch", "overall", "pos"}},
	{FieldNetTime, []string{"temps reel", "temps net", "net time", "chip", "puce"}},
	{FieldGunTime, []string{"temps officiel", "temps brut", "gun time", "gun", "officiel"}},
	{FieldAverageSpeed, []string{"vitesse", "speed", "km/h", "allure", "moy"}},
	{FieldFinishTime, []string{"temps", "time", "chrono", "finish", "arrivee"}},
	{FieldFullName, []string{"nom prenom", "nom et prenom", "prenom nom", "nom complet", "full name", "athlete", "coureur", "concurrent", "participant"}},
	{FieldFirstName, []string{"prenom", "first name", "firstname", "first"}},
	{FieldLastName, []string{"nom de famille", "last name", "lastname", "surname", "nom", "name"}},
	{FieldBib, []string{"dossard", "doss", "dos", "bib", "num"}},
	{FieldGender, []string{"sexe", "sex", "genre", "gender", "sx"}},
	{FieldCategory, []string{"categorie", "category", "cat"}},
	{FieldBirthYear, []string{"annee", "naissance", "birth", "year"}},
	{FieldClub, []string{"club", "equipe", "team", "association"}},
	{FieldCity, []string{"ville", "city", "commune", "localite"}},
	{FieldNationality, []string{"nationalite", "nation", "pays", "country", "nat"}},
	{FieldStatus, []string{"statut", "status", "etat"}},
}

var timeFields = map[string]bool{FieldFinishTime: true, FieldGunTime: true, FieldNetTime: true}

// SuggestMapping proposes a ColumnMapping for a header row. Keywords are
// tried first; headers left over are matched fuzzily so that abbreviations
// and typos ("Dosard", "Cat.") still find their field. Each header and each
// field is used at most once.
func SuggestMapping(headers []string) ColumnMapping {
	mapping := ColumnMapping{}
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = foldHeader(h)
	}

	claimed := make([]bool, len(headers))
	for i, h := range folded {
		if h == "" {
			claimed[i] = true
			continue
		}
		for _, rule := range suggestionRules {
			if mapping.Has(rule.field) || !allowed(rule.field, h) {
				continue
			}
			if containsAny(h, rule.keywords) {
				mapping[rule.field] = i
				claimed[i] = true
				break
			}
		}
	}

	for i, h := range folded {
		if claimed[i] || len(h) < 3 {
			continue
		}
		bestField, bestDist := "", -1
		for _, rule := range suggestionRules {
			if mapping.Has(rule.field) || !allowed(rule.field, h) {
				continue
			}
			ranks := fuzzy.RankFindNormalizedFold(h, rule.keywords)
			for _, r := range ranks {
				if r.Distance > len(r.Target)/2 {
					continue
				}
				if bestDist < 0 || r.Distance < bestDist {
					bestField, bestDist = rule.field, r.Distance
				}
			}
		}
		if bestField != "" {
			mapping[bestField] = i
		}
	}

	return mapping
}

// allowed keeps split columns ("Temps mi-course", "Inter 1") away from the
// time fields.
func allowed(field, header string) bool {
	if !timeFields[field] {
		return true
	}
	return !strings.Contains(header, "mi-") && !strings.Contains(header, "inter") && !strings.Contains(header, "split")
}

// foldHeader lowercases h, strips accents and collapses punctuation and
// whitespace.
func foldHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, h)
	if err != nil {
		out = h
	}
	out = strings.Map(func(r rune) rune {
		switch r {
		case '_', '.', '°', '\'', '"':
			return ' '
		}
		return unicode.ToLower(r)
	}, out)
	return strings.Join(strings.Fields(out), " ")
}

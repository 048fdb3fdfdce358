package results

import "sort"

// Format identifies the layout of an import file.
type Format string

const (
	FormatElogica Format = "elogica"
	FormatFFAText Format = "ffa-text"
	FormatHTML    Format = "html"
	FormatExcel   Format = "excel"
	FormatCSV     Format = "csv"
)

// AllFormats lists the formats Detect can return.
var AllFormats = []Format{FormatElogica, FormatFFAText, FormatHTML, FormatExcel, FormatCSV}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	for _, known := range AllFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Status is the outcome of a participant's race.
type Status string

const (
	StatusFinished     Status = "finished"
	StatusDidNotFinish Status = "dnf"
	StatusDidNotStart  Status = "dns"
	StatusDisqualified Status = "dsq"
)

// SplitTime is an intermediate timing point.
type SplitTime struct {
	PointName string   `json:"pointName"`
	Time      string   `json:"time"`
	Distance  *float64 `json:"distance,omitempty"`
}

// ParsedResult is one participant's finish record.
//
// Time fields hold a normalized HH:MM:SS string or are empty when the source
// did not carry a usable value.
type ParsedResult struct {
	BibNumber    int          `json:"bibNumber"`
	AthleteName  string       `json:"athleteName"`
	Gender       string       `json:"gender,omitempty"`
	Category     string       `json:"category,omitempty"`
	FinishTime   string       `json:"finishTime,omitempty"`
	GunTime      string       `json:"gunTime,omitempty"`
	NetTime      string       `json:"netTime,omitempty"`
	Status       Status       `json:"status"`
	SplitTimes   []SplitTime  `json:"splitTimes,omitempty"`
	CustomFields CustomFields `json:"customFields,omitempty"`
}

// RowError reports a row that had a bib but could not become a result.
// Row is 1-based over the source rows with the header counted; row 0 is
// used for errors that concern the whole document.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ParseResult is the output of every parser.
type ParseResult struct {
	Results []ParsedResult `json:"results"`
	Errors  []RowError     `json:"errors"`
}

// HasErrors reports whether any row or batch error was recorded.
func (r ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ParseResult) addError(row int, msg string) {
	r.Errors = append(r.Errors, RowError{Row: row, Error: msg})
}

func batchError(msg string) ParseResult {
	return ParseResult{
		Results: []ParsedResult{},
		Errors:  []RowError{{Row: 0, Error: msg}},
	}
}

func newParseResult() ParseResult {
	return ParseResult{Results: []ParsedResult{}, Errors: []RowError{}}
}

// Standard mapping keys.
const (
	FieldBib          = "bib"
	FieldLastName     = "lastName"
	FieldFirstName    = "firstName"
	FieldFullName     = "fullName"
	FieldGender       = "gender"
	FieldCategory     = "category"
	FieldFinishTime   = "finishTime"
	FieldGunTime      = "gunTime"
	FieldNetTime      = "netTime"
	FieldStatus       = "status"
	FieldClub         = "club"
	FieldCity         = "city"
	FieldNationality  = "nationality"
	FieldAverageSpeed = "averageSpeed"
	FieldOverallRank  = "overallRank"
	FieldGenderRank   = "genderRank"
	FieldCategoryRank = "categoryRank"
)

// coreFields have a first-class slot in ParsedResult and never land in
// CustomFields.
var coreFields = map[string]bool{
	FieldBib:        true,
	FieldLastName:   true,
	FieldFirstName:  true,
	FieldFullName:   true,
	FieldGender:     true,
	FieldCategory:   true,
	FieldFinishTime: true,
	FieldGunTime:    true,
	FieldNetTime:    true,
	FieldStatus:     true,
}

// extraFields are standard names without a slot in ParsedResult.
var extraFields = []string{
	FieldClub,
	FieldCity,
	FieldNationality,
	FieldAverageSpeed,
	FieldOverallRank,
	FieldGenderRank,
	FieldCategoryRank,
}

// StandardFields returns every mapping key with a documented meaning.
func StandardFields() []string {
	out := make([]string, 0, len(coreFields)+len(extraFields))
	for k := range coreFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return append(out, extraFields...)
}

// reservedCustomKeys may not be used as custom field names: they would
// shadow a ParsedResult field once records are flattened for storage.
var reservedCustomKeys = map[string]bool{
	FieldBib:        true,
	FieldLastName:   true,
	FieldFirstName:  true,
	FieldFullName:   true,
	FieldGender:     true,
	FieldCategory:   true,
	FieldFinishTime: true,
	FieldGunTime:    true,
	FieldNetTime:    true,
	FieldStatus:     true,
	"bibNumber":     true,
	"athleteName":   true,
	"splitTimes":    true,
	"customFields":  true,
	"raceId":        true,
}

// CustomFields holds mapped columns that have no slot in ParsedResult.
type CustomFields map[string]string

// Set stores value under key. Empty keys and reserved keys are refused.
func (c CustomFields) Set(key, value string) bool {
	if key == "" || reservedCustomKeys[key] {
		return false
	}
	c[key] = value
	return true
}

// ColumnMapping maps a field name to a zero-based cell index.
type ColumnMapping map[string]int

// Index returns the mapped cell index for key.
func (m ColumnMapping) Index(key string) (int, bool) {
	idx, ok := m[key]
	if !ok || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Has reports whether key is mapped to a usable index.
func (m ColumnMapping) Has(key string) bool {
	_, ok := m.Index(key)
	return ok
}

// Keys returns the mapped keys in a stable order.
func (m ColumnMapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

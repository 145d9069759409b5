package model

// ValidationStatus is the overall outcome of a validation report.
type ValidationStatus string

const (
	ValidationPassed ValidationStatus = "PASSED"
	ValidationFailed ValidationStatus = "FAILED"
)

// ValidationReport describes how an input table mapped onto the canonical
// schema and how complete the mapped columns are.
type ValidationReport struct {
	Source         string            `json:"source,omitempty"`
	TotalRows      int               `json:"total_rows"`
	TotalColumns   int               `json:"total_columns"`
	Columns        []string          `json:"columns"`
	MappedColumns  map[string]string `json:"mapped_columns"`  // source column -> canonical
	IgnoredColumns []string          `json:"ignored_columns"` // no canonical match
	DroppedColumns []string          `json:"dropped_columns"` // later duplicates of a canonical name
	MissingColumns []string          `json:"missing_columns"` // canonical names with no source column
	MissingValues  map[string]string `json:"missing_values"`  // canonical name -> "12.50%"
	UnparsedDates  int               `json:"unparsed_dates"`
	SynthesizedIDs int               `json:"synthesized_ids"`
	Status         ValidationStatus  `json:"validation_status"`
}

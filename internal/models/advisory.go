package models

type AdvisoryKind string

const (
	AdvisoryMalformedField     AdvisoryKind = "malformed_field"
	AdvisoryMissingColumn      AdvisoryKind = "missing_column"
	AdvisoryInvalidFilterState AdvisoryKind = "invalid_filter_state"
)

// Advisory is a non-fatal notice raised while loading a table or computing a view.
// Row is the 0-based data row, nil for table- or view-level notices.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Column  string       `json:"column,omitempty"`
	Row     *int         `json:"row,omitempty"`
	Value   string       `json:"value,omitempty"`
	Message string       `json:"message"`
}

func RowAdvisory(kind AdvisoryKind, column string, row int, value, message string) Advisory {
	return Advisory{Kind: kind, Column: column, Row: &row, Value: value, Message: message}
}

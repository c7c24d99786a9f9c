package insights

import "errors"

var (
	// ErrNotTabular is returned when an upload cannot be read as delimited rows at all.
	ErrNotTabular = errors.New("input is not tabular data")
	// ErrEmptyInput is returned for a zero-byte upload or one without a header row.
	ErrEmptyInput = errors.New("input is empty")
)

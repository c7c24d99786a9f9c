package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"insights-filter/internal/insights"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Scope selects whether an export carries every column or only IDs.
type Scope string

const (
	ScopeFull Scope = "full"
	ScopeIDs  Scope = "ids"
)

const sheetName = "Filtered"

var ErrUnknownFormat = errors.New("unknown export format")

var derivedHeader = []string{"Days Until Event", "Percentage Difference", "Has Secondary Market", "Highlighted"}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeFull:
		return ScopeFull, nil
	case ScopeIDs, "id":
		return ScopeIDs, nil
	}
	return "", fmt.Errorf("unknown export scope %q", s)
}

// FileName is the download name for a format and scope.
func FileName(f Format, s Scope) string {
	base := "filtered_data"
	if s == ScopeIDs {
		base = "filtered_ids"
	}
	return base + "." + string(f)
}

func ContentType(f Format) string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Records lays the view out as rows of cells, header first. A view with no
// rows yields the header alone.
func Records(v insights.View, s Scope) [][]string {
	if s == ScopeIDs {
		out := make([][]string, 0, len(v.Rows)+1)
		out = append(out, []string{"ID"})
		for _, r := range v.Rows {
			out = append(out, []string{r.ID})
		}
		return out
	}

	header := make([]string, 0, len(v.Header)+len(derivedHeader))
	header = append(header, v.Header...)
	header = append(header, derivedHeader...)

	out := make([][]string, 0, len(v.Rows)+1)
	out = append(out, header)
	for _, r := range v.Rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Source...)
		for len(row) < len(v.Header) {
			row = append(row, "")
		}
		row = row[:len(v.Header)]

		days := ""
		if r.DaysUntilEvent != nil {
			days = strconv.Itoa(*r.DaysUntilEvent)
		}
		pct := ""
		if r.PercentageDifference != nil {
			pct = strconv.FormatFloat(*r.PercentageDifference, 'f', 2, 64)
		}
		row = append(row, days, pct, yesNo(r.HasSecondaryMarket), yesNo(r.Highlighted))
		out = append(out, row)
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func Write(w io.Writer, v insights.View, f Format, s Scope) error {
	if f == FormatXLSX {
		return WriteXLSX(w, v, s)
	}
	return WriteCSV(w, v, s)
}

func WriteCSV(w io.Writer, v insights.View, s Scope) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(v, s)); err != nil {
		return fmt.Errorf("write csv export: %w", err)
	}
	return nil
}

// WriteXLSX writes the same cells as WriteCSV into a single-sheet workbook.
func WriteXLSX(w io.Writer, v insights.View, s Scope) error {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, rec := range Records(v, s) {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(rec))
		for j, cell := range rec {
			row[j] = cell
		}
		if err := xl.SetSheetRow(sheetName, cellRef, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := xl.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("write xlsx export: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Package ingest parses external activity data into the typed inputs the
// calculation packages consume. Parsing is permissive: structurally
// readable rows are always kept in raw form for quality assessment, and
// only rows with usable numerics become typed calculation rows.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/quality"
)

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrMissingColumns indicates the input header lacks required columns.
	ErrMissingColumns = constError("input is missing required columns")
	// ErrNoRows indicates the input contains a header but no data rows.
	ErrNoRows = constError("input contains no data rows")
)

// standardColumns is the canonical activity-data column order.
var standardColumns = []string{"category", "activity", "unit", "amount", "emission_factor", "source", "ch4", "n2o"}

// requiredColumns must all be present in the header after alias mapping.
// emission_factor is deliberately not required: rows without one are
// resolved against the factor library.
var requiredColumns = []string{"category", "activity", "unit", "amount"}

// columnAliases maps common header spellings onto canonical column names.
var columnAliases = map[string][]string{
	"category":        {"scope", "scope_tag", "emission_scope", "category_tag"},
	"activity":        {"activity_name", "activity_type", "item", "description", "process"},
	"unit":            {"uom", "units", "measurement_unit"},
	"amount":          {"value", "quantity", "activity_amount", "consumption"},
	"emission_factor": {"ef", "factor", "co2_factor", "co2e_factor"},
	"source":          {"data_source", "reference", "origin"},
	"ch4":             {"ch4_factor", "methane", "methane_factor"},
	"n2o":             {"n2o_factor", "nitrous_oxide", "nitrous_oxide_factor"},
}

// RowError records why a data row could not become a typed calculation row.
type RowError struct {
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Reason)
}

// Dataset is the outcome of parsing one activity-data input. Raw keeps
// every readable row verbatim so quality scoring sees the data as
// uploaded. Rows holds only rows usable for calculation. Errors explains
// each raw row that was excluded from Rows.
type Dataset struct {
	Rows   []engine.ActivityRow
	Raw    []quality.Row
	Errors []RowError
}

// ReadActivities parses CSV activity data from r.
//
// The header row is matched case-insensitively against canonical column
// names and their aliases. All required columns must resolve or
// ErrMissingColumns is returned. Blank lines are skipped; short records
// are padded with empty cells.
func ReadActivities(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line+1, err)
		}
		line++

		if blankRecord(record) {
			continue
		}

		raw := quality.Row{
			Category:       cell(record, cols, "category"),
			Activity:       cell(record, cols, "activity"),
			Unit:           cell(record, cols, "unit"),
			Amount:         cell(record, cols, "amount"),
			EmissionFactor: cell(record, cols, "emission_factor"),
			CH4:            cell(record, cols, "ch4"),
			N2O:            cell(record, cols, "n2o"),
		}
		ds.Raw = append(ds.Raw, raw)

		row, rowErr := typedRow(raw, cell(record, cols, "source"), line)
		if rowErr != nil {
			ds.Errors = append(ds.Errors, *rowErr)
			continue
		}
		ds.Rows = append(ds.Rows, row)
	}

	if len(ds.Raw) == 0 {
		return nil, ErrNoRows
	}
	return ds, nil
}

// typedRow converts a raw row into a calculation row, or explains why it
// cannot be one.
func typedRow(raw quality.Row, source string, line int) (engine.ActivityRow, *RowError) {
	for _, field := range []struct{ name, value string }{
		{"category", raw.Category},
		{"activity", raw.Activity},
		{"unit", raw.Unit},
	} {
		if strings.TrimSpace(field.value) == "" {
			return engine.ActivityRow{}, &RowError{Line: line, Field: field.name, Reason: "empty"}
		}
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(raw.Amount), 64)
	if err != nil {
		return engine.ActivityRow{}, &RowError{Line: line, Field: "amount", Reason: "not numeric"}
	}

	row := engine.ActivityRow{
		Category: strings.TrimSpace(raw.Category),
		Activity: strings.TrimSpace(raw.Activity),
		Unit:     strings.TrimSpace(raw.Unit),
		Amount:   amount,
		Source:   strings.TrimSpace(source),
	}

	for _, opt := range []struct {
		name  string
		value string
		dst   **float64
	}{
		{"emission_factor", raw.EmissionFactor, &row.EmissionFactor},
		{"ch4", raw.CH4, &row.CH4},
		{"n2o", raw.N2O, &row.N2O},
	} {
		trimmed := strings.TrimSpace(opt.value)
		if trimmed == "" {
			continue
		}
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return engine.ActivityRow{}, &RowError{Line: line, Field: opt.name, Reason: "not numeric"}
		}
		*opt.dst = &v
	}

	return row, nil
}

// mapHeader resolves the header into canonical column positions.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		canonical := canonicalColumn(name)
		if canonical == "" {
			continue
		}
		if _, dup := cols[canonical]; !dup {
			cols[canonical] = i
		}
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func canonicalColumn(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	for _, canonical := range standardColumns {
		if normalized == canonical {
			return canonical
		}
		for _, alias := range columnAliases[canonical] {
			if normalized == alias {
				return canonical
			}
		}
	}
	return ""
}

func cell(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

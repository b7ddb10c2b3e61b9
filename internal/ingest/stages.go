package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rshade/carbonledger/internal/lca"
)

// stageColumns is the canonical life-cycle input column set.
// allocation_factor is optional.
var stageColumns = []string{"stage", "amount", "emission_factor", "allocation_factor"}

var stageAliases = map[string][]string{
	"stage":             {"lifecycle_stage", "life_cycle_stage", "phase"},
	"amount":            {"value", "quantity"},
	"emission_factor":   {"ef", "factor", "co2_factor", "co2e_factor"},
	"allocation_factor": {"allocation", "alloc_factor"},
}

// ReadStages parses CSV life-cycle stage data from r into stage rows plus
// errors for rows that could not be typed.
func ReadStages(r io.Reader) ([]lca.StageRow, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		canonical := canonicalStageColumn(name)
		if canonical == "" {
			continue
		}
		if _, dup := cols[canonical]; !dup {
			cols[canonical] = i
		}
	}
	var missing []string
	for _, name := range []string{"stage", "amount", "emission_factor"} {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var (
		rows    []lca.StageRow
		rowErrs []RowError
	)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading line %d: %w", line+1, err)
		}
		line++

		if blankRecord(record) {
			continue
		}

		row, rowErr := typedStageRow(record, cols, line)
		if rowErr != nil {
			rowErrs = append(rowErrs, *rowErr)
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 && len(rowErrs) == 0 {
		return nil, nil, ErrNoRows
	}
	return rows, rowErrs, nil
}

func typedStageRow(record []string, cols map[string]int, line int) (lca.StageRow, *RowError) {
	stage := strings.TrimSpace(cell(record, cols, "stage"))
	if stage == "" {
		return lca.StageRow{}, &RowError{Line: line, Field: "stage", Reason: "empty"}
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(cell(record, cols, "amount")), 64)
	if err != nil {
		return lca.StageRow{}, &RowError{Line: line, Field: "amount", Reason: "not numeric"}
	}
	factor, err := strconv.ParseFloat(strings.TrimSpace(cell(record, cols, "emission_factor")), 64)
	if err != nil {
		return lca.StageRow{}, &RowError{Line: line, Field: "emission_factor", Reason: "not numeric"}
	}

	row := lca.StageRow{Stage: stage, Amount: amount, EmissionFactor: factor}

	if raw := strings.TrimSpace(cell(record, cols, "allocation_factor")); raw != "" {
		alloc, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return lca.StageRow{}, &RowError{Line: line, Field: "allocation_factor", Reason: "not numeric"}
		}
		row.AllocationFactor = &alloc
	}
	return row, nil
}

func canonicalStageColumn(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	for _, canonical := range stageColumns {
		if normalized == canonical {
			return canonical
		}
		for _, alias := range stageAliases[canonical] {
			if normalized == alias {
				return canonical
			}
		}
	}
	return ""
}

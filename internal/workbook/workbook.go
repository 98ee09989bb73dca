// Package workbook serializes product templates and telemetry value sheets
// to and from multi-sheet xlsx workbooks. Sheet names and column headers are
// a fixed contract; re-import matches rows by name plus a hidden ID column.
package workbook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fixed sheet names of the product template workbook.
const (
	SheetProductInfo = "Product Info"
	SheetOutcomes    = "Outcomes"
	SheetLicenses    = "Licenses"
	SheetReleases    = "Releases"
	SheetTasks       = "Tasks"
	SheetCustomAttrs = "Custom Attributes"
	SheetTelemetry   = "Telemetry"
)

var (
	headersProductInfo = []string{"ID", "Name", "Description"}
	headersOutcomes    = []string{"ID", "Name", "Description"}
	headersLicenses    = []string{"Name", "Description"}
	headersReleases    = []string{"ID", "Name"}
	headersTasks       = []string{"ID", "Name", "Description", "Weight", "Sequence", "License", "Outcomes", "Releases"}
	headersCustomAttrs = []string{"ID", "Name", "Value"}
	headersTelemetry   = []string{"ID", "Task", "Attribute", "Description", "Data Type", "Required", "Success Criteria", "Value"}
)

// Criteria is the JSON shape serialized into the Success Criteria cell.
type Criteria struct {
	Operator      string `json:"operator"`
	ExpectedValue string `json:"expectedValue"`
}

func marshalCriteria(operator, expected string) string {
	if operator == "" {
		return ""
	}
	data, _ := json.Marshal(Criteria{Operator: operator, ExpectedValue: expected})
	return string(data)
}

func unmarshalCriteria(cell string) (Criteria, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return Criteria{}, nil
	}
	var c Criteria
	if err := json.Unmarshal([]byte(cell), &c); err != nil {
		return Criteria{}, fmt.Errorf("invalid success criteria %q: %w", cell, err)
	}
	return c, nil
}

// cellAt returns the trimmed cell value at idx, tolerating short rows.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// headerIndex maps wanted header names to their column positions, erroring
// when a required header is absent. Header matching is case-insensitive.
func headerIndex(header []string, wanted []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int, len(wanted))
	for _, w := range wanted {
		i, ok := pos[strings.ToLower(w)]
		if !ok {
			return nil, fmt.Errorf("missing column %q", w)
		}
		idx[w] = i
	}
	return idx, nil
}

func splitList(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"adoptd/internal/telemetry"
)

// ParseTelemetryWorkbook reads filled-in telemetry values from the Telemetry
// sheet of an uploaded workbook. Rows with a blank Value cell are skipped so
// a partially completed template can be round-tripped repeatedly.
func ParseTelemetryWorkbook(r io.Reader) ([]telemetry.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := sheetRows(f, SheetTelemetry)
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(rows[0], []string{"Task", "Attribute", "Value"})
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", SheetTelemetry, err)
	}

	out := make([]telemetry.Row, 0, len(rows)-1)
	for _, row := range rows[1:] {
		value := cellAt(row, idx["Value"])
		if value == "" {
			continue
		}
		out = append(out, telemetry.Row{
			TaskName:      cellAt(row, idx["Task"]),
			AttributeName: cellAt(row, idx["Attribute"]),
			Value:         value,
		})
	}
	return out, nil
}

package workbook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"adoptd/internal/models"
)

// ExportProduct serializes a product template, with its tasks, outcomes,
// releases, custom attributes, and telemetry schema, into a workbook. The
// caller must have preloaded the product's associations.
func ExportProduct(p *models.Product) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeSheet(f, SheetProductInfo, headersProductInfo, [][]any{
		{p.ID.String(), p.Name, p.Description},
	}); err != nil {
		return nil, err
	}

	outcomeRows := make([][]any, 0, len(p.Outcomes))
	for _, o := range p.Outcomes {
		outcomeRows = append(outcomeRows, []any{o.ID.String(), o.Name, o.Description})
	}
	if err := writeSheet(f, SheetOutcomes, headersOutcomes, outcomeRows); err != nil {
		return nil, err
	}

	if err := writeSheet(f, SheetLicenses, headersLicenses, [][]any{
		{string(models.LicenseEssential), "Baseline tier; tasks apply to every assignment"},
		{string(models.LicenseAdvantage), "Mid tier; includes all Essential tasks"},
		{string(models.LicenseSignature), "Top tier; includes all lower-tier tasks"},
	}); err != nil {
		return nil, err
	}

	releaseRows := make([][]any, 0, len(p.Releases))
	for _, r := range p.Releases {
		releaseRows = append(releaseRows, []any{r.ID.String(), r.Name})
	}
	if err := writeSheet(f, SheetReleases, headersReleases, releaseRows); err != nil {
		return nil, err
	}

	tasks := append([]models.Task(nil), p.Tasks...)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].SequenceNumber < tasks[j].SequenceNumber })

	taskRows := make([][]any, 0, len(tasks))
	telemetryRows := [][]any{}
	for _, t := range tasks {
		taskRows = append(taskRows, []any{
			t.ID.String(),
			t.Name,
			t.Description,
			t.Weight,
			t.SequenceNumber,
			string(t.LicenseLevel),
			joinNames(outcomeNames(t.Outcomes)),
			joinNames(releaseNames(t.Releases)),
		})
		for _, a := range t.TelemetryAttributes {
			telemetryRows = append(telemetryRows, []any{
				a.ID.String(),
				t.Name,
				a.Name,
				a.Description,
				string(a.DataType),
				strconv.FormatBool(a.Required),
				marshalCriteria(a.Operator, a.ExpectedValue),
				"",
			})
		}
	}
	if err := writeSheet(f, SheetTasks, headersTasks, taskRows); err != nil {
		return nil, err
	}

	attrRows := make([][]any, 0, len(p.Attributes))
	for _, a := range p.Attributes {
		attrRows = append(attrRows, []any{a.ID.String(), a.Name, a.Value})
	}
	if err := writeSheet(f, SheetCustomAttrs, headersCustomAttrs, attrRows); err != nil {
		return nil, err
	}

	if err := writeSheet(f, SheetTelemetry, headersTelemetry, telemetryRows); err != nil {
		return nil, err
	}

	// Default sheet created by excelize is replaced by the contract sheets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	return f, nil
}

// ExportTelemetryTemplate produces the workbook operators fill in for a
// telemetry import: one row per task/attribute pair with an empty Value cell.
func ExportTelemetryTemplate(tasks []models.CustomerTask, attrsByTemplate map[string][]models.TelemetryAttribute) (*excelize.File, error) {
	f := excelize.NewFile()

	rows := [][]any{}
	for _, t := range tasks {
		for _, a := range attrsByTemplate[t.TemplateTaskID.String()] {
			rows = append(rows, []any{
				a.ID.String(),
				t.Name,
				a.Name,
				a.Description,
				string(a.DataType),
				strconv.FormatBool(a.Required),
				marshalCriteria(a.Operator, a.ExpectedValue),
				"",
			})
		}
	}

	if err := writeSheet(f, SheetTelemetry, headersTelemetry, rows); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}

// writeSheet creates the named sheet, writes the header row plus data rows,
// and hides the leading ID column when the contract has one.
func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}

	if headers[0] == "ID" {
		if err := f.SetColVisible(sheet, "A", false); err != nil {
			return err
		}
	}
	return nil
}

func outcomeNames(outcomes []models.Outcome) []string {
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.Name)
	}
	return names
}

func releaseNames(releases []models.Release) []string {
	names := make([]string, 0, len(releases))
	for _, r := range releases {
		names = append(names, r.Name)
	}
	return names
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

package workbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"adoptd/internal/models"
	"adoptd/internal/telemetry"
)

// ImportResult summarises a product workbook import.
type ImportResult struct {
	ProductID         uuid.UUID `json:"product_id"`
	Created           bool      `json:"created"`
	TasksCreated      int       `json:"tasks_created"`
	TasksUpdated      int       `json:"tasks_updated"`
	OutcomesCreated   int       `json:"outcomes_created"`
	OutcomesUpdated   int       `json:"outcomes_updated"`
	ReleasesCreated   int       `json:"releases_created"`
	ReleasesUpdated   int       `json:"releases_updated"`
	AttributesWritten int       `json:"attributes_written"`
	Warnings          []string  `json:"warnings"`
}

func (r *ImportResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ImportProduct parses a previously exported (or externally authored) product
// workbook into create/update mutations. Structural problems, a missing
// sheet, column, or product name, fail the entire import transaction;
// recoverable per-row issues are reported as warnings. Matching is by the
// hidden ID column first, then by name: blank and unmatched IDs create rows.
func ImportProduct(ctx context.Context, db *gorm.DB, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	result := &ImportResult{Warnings: []string{}}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := importProductInfo(tx, f, result)
		if err != nil {
			return err
		}
		result.ProductID = product.ID

		outcomes, err := importOutcomes(tx, f, product, result)
		if err != nil {
			return err
		}
		releases, err := importReleases(tx, f, product, result)
		if err != nil {
			return err
		}
		if err := checkLicenseSheet(f, result); err != nil {
			return err
		}
		tasks, err := importTasks(tx, f, product, outcomes, releases, result)
		if err != nil {
			return err
		}
		if err := importCustomAttributes(tx, f, product, result); err != nil {
			return err
		}
		return importTelemetrySchema(tx, f, tasks, result)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		var sheetErr excelize.ErrSheetNotExist
		if errors.As(err, &sheetErr) {
			return nil, fmt.Errorf("workbook is missing sheet %q", sheet)
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}
	return rows, nil
}

func importProductInfo(tx *gorm.DB, f *excelize.File, result *ImportResult) (*models.Product, error) {
	rows, err := sheetRows(f, SheetProductInfo)
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(rows[0], headersProductInfo)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", SheetProductInfo, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no product row", SheetProductInfo)
	}

	name := cellAt(rows[1], idx["Name"])
	if name == "" {
		return nil, fmt.Errorf("sheet %q: product name is required", SheetProductInfo)
	}
	description := cellAt(rows[1], idx["Description"])

	var product models.Product
	if rawID := cellAt(rows[1], idx["ID"]); rawID != "" {
		if id, err := uuid.Parse(rawID); err == nil {
			if err := tx.First(&product, "id = ?", id).Error; err == nil {
				product.Name = name
				product.Description = description
				return &product, tx.Model(&product).
					Updates(map[string]any{"name": name, "description": description}).Error
			}
			result.warn("product id %s not found; matching by name", rawID)
		} else {
			result.warn("invalid product id %q; matching by name", rawID)
		}
	}

	err = tx.First(&product, "name = ?", name).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		product = models.Product{ID: uuid.New(), Name: name, Description: description}
		result.Created = true
		return &product, tx.Create(&product).Error
	case err != nil:
		return nil, err
	default:
		product.Description = description
		return &product, tx.Model(&product).Update("description", description).Error
	}
}

func importOutcomes(tx *gorm.DB, f *excelize.File, product *models.Product, result *ImportResult) (map[string]models.Outcome, error) {
	rows, err := sheetRows(f, SheetOutcomes)
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(rows[0], headersOutcomes)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", SheetOutcomes, err)
	}

	byName := make(map[string]models.Outcome)
	var existing []models.Outcome
	if err := tx.Where("product_id = ?", product.ID).Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, o := range existing {
		byName[strings.ToLower(o.Name)] = o
	}

	for i, row := range rows[1:] {
		name := cellAt(row, idx["Name"])
		if name == "" {
			result.warn("sheet %q row %d: blank name skipped", SheetOutcomes, i+2)
			continue
		}
		description := cellAt(row, idx["Description"])

		o, matched := matchOutcome(tx, byName, cellAt(row, idx["ID"]), name)
		if matched {
			o.Name = name
			o.Description = description
			if err := tx.Model(&models.Outcome{}).Where("id = ?", o.ID).
				Updates(map[string]any{"name": name, "description": description}).Error; err != nil {
				return nil, err
			}
			result.OutcomesUpdated++
		} else {
			o = models.Outcome{ID: uuid.New(), ProductID: &product.ID, Name: name, Description: description}
			if err := tx.Create(&o).Error; err != nil {
				return nil, err
			}
			result.OutcomesCreated++
		}
		byName[strings.ToLower(name)] = o
	}
	return byName, nil
}

func matchOutcome(tx *gorm.DB, byName map[string]models.Outcome, rawID, name string) (models.Outcome, bool) {
	if rawID != "" {
		if id, err := uuid.Parse(rawID); err == nil {
			var o models.Outcome
			if err := tx.First(&o, "id = ?", id).Error; err == nil {
				return o, true
			}
		}
	}
	o, ok := byName[strings.ToLower(name)]
	return o, ok
}

func importReleases(tx *gorm.DB, f *excelize.File, product *models.Product, result *ImportResult) (map[string]models.Release, error) {
	rows, err := sheetRows(f, SheetReleases)
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(rows[0], headersReleases)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", SheetReleases, err)
	}

	byName := make(map[string]models.Release)
	var existing []models.Release
	if err := tx.Where("product_id = ?", product.ID).Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, r := range existing {
		byName[strings.ToLower(r.Name)] = r
	}

	for i, row := range rows[1:] {
		name := cellAt(row, idx["Name"])
		if name == "" {
			result.warn("sheet %q row %d: blank name skipped", SheetReleases, i+2)
			continue
		}

		if rel, ok := byName[strings.ToLower(name)]; ok {
			result.ReleasesUpdated++
			byName[strings.ToLower(name)] = rel
			continue
		}
		rel := models.Release{ID: uuid.New(), ProductID: &product.ID, Name: name}
		if err := tx.Create(&rel).Error; err != nil {
			return nil, err
		}
		result.ReleasesCreated++
		byName[strings.ToLower(name)] = rel
	}
	return byName, nil
}

func checkLicenseSheet(f *excelize.File, result *ImportResult) error {
	rows, err := sheetRows(f, SheetLicenses)
	if err != nil {
		return err
	}
	idx, err := headerIndex(rows[0], headersLicenses)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", SheetLicenses, err)
	}
	for i, row := range rows[1:] {
		name := cellAt(row, idx["Name"])
		if name == "" {
			continue
		}
		if _, err := models.ParseLicenseLevel(name); err != nil {
			result.warn("sheet %q row %d: unknown license level %q", SheetLicenses, i+2, name)
		}
	}
	return nil
}

func importTasks(tx *gorm.DB, f *excelize.File, product *models.Product, outcomes map[string]models.Outcome, releases map[string]models.Release, result *ImportResult) (map[string]models.Task, error) {
	rows, err := sheetRows(f, SheetTasks)
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(rows[0], headersTasks)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", SheetTasks, err)
	}

	byName := make(map[string]models.Task)
	var existing []models.Task
	if err := tx.Where("product_id = ?", product.ID).Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, t := range existing {
		byName[strings.ToLower(t.Name)] = t
	}

	for i, row := range rows[1:] {
		rowNum := i + 2
		name := cellAt(row, idx["Name"])
		if name == "" {
			result.warn("sheet %q row %d: blank name skipped", SheetTasks, rowNum)
			continue
		}

		weight, err := strconv.ParseFloat(cellAt(row, idx["Weight"]), 64)
		if err != nil || weight < 0 || weight > 100 {
			result.warn("sheet %q row %d: invalid weight %q, using 0", SheetTasks, rowNum, cellAt(row, idx["Weight"]))
			weight = 0
		}
		sequence, err := strconv.Atoi(cellAt(row, idx["Sequence"]))
		if err != nil {
			sequence = rowNum - 1
		}
		level, err := models.ParseLicenseLevel(cellAt(row, idx["License"]))
		if err != nil {
			result.warn("sheet %q row %d: %v, using ESSENTIAL", SheetTasks, rowNum, err)
			level = models.LicenseEssential
		}

		var taskOutcomes []models.Outcome
		for _, n := range splitList(cellAt(row, idx["Outcomes"])) {
			o, ok := outcomes[strings.ToLower(n)]
			if !ok {
				result.warn("sheet %q row %d: unknown outcome %q", SheetTasks, rowNum, n)
				continue
			}
			taskOutcomes = append(taskOutcomes, o)
		}
		var taskReleases []models.Release
		for _, n := range splitList(cellAt(row, idx["Releases"])) {
			rel, ok := releases[strings.ToLower(n)]
			if !ok {
				result.warn("sheet %q row %d: unknown release %q", SheetTasks, rowNum, n)
				continue
			}
			taskReleases = append(taskReleases, rel)
		}

		task, matched := matchTask(tx, byName, cellAt(row, idx["ID"]), name)
		task.Name = name
		task.Description = cellAt(row, idx["Description"])
		task.Weight = weight
		task.SequenceNumber = sequence
		task.LicenseLevel = level

		if matched {
			if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).
				Updates(map[string]any{
					"name":            task.Name,
					"description":     task.Description,
					"weight":          task.Weight,
					"sequence_number": task.SequenceNumber,
					"license_level":   task.LicenseLevel,
				}).Error; err != nil {
				return nil, err
			}
			result.TasksUpdated++
		} else {
			task.ID = uuid.New()
			task.ProductID = &product.ID
			if err := tx.Create(&task).Error; err != nil {
				return nil, err
			}
			result.TasksCreated++
		}

		if err := tx.Model(&task).Association("Outcomes").Replace(taskOutcomes); err != nil {
			return nil, err
		}
		if err := tx.Model(&task).Association("Releases").Replace(taskReleases); err != nil {
			return nil, err
		}
		byName[strings.ToLower(name)] = task
	}
	return byName, nil
}

func matchTask(tx *gorm.DB, byName map[string]models.Task, rawID, name string) (models.Task, bool) {
	if rawID != "" {
		if id, err := uuid.Parse(rawID); err == nil {
			var t models.Task
			if err := tx.First(&t, "id = ?", id).Error; err == nil {
				return t, true
			}
		}
	}
	t, ok := byName[strings.ToLower(name)]
	return t, ok
}

func importCustomAttributes(tx *gorm.DB, f *excelize.File, product *models.Product, result *ImportResult) error {
	rows, err := sheetRows(f, SheetCustomAttrs)
	if err != nil {
		return err
	}
	idx, err := headerIndex(rows[0], headersCustomAttrs)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", SheetCustomAttrs, err)
	}

	for i, row := range rows[1:] {
		name := cellAt(row, idx["Name"])
		if name == "" {
			result.warn("sheet %q row %d: blank name skipped", SheetCustomAttrs, i+2)
			continue
		}
		value := cellAt(row, idx["Value"])

		var attr models.ProductAttribute
		err := tx.First(&attr, "product_id = ? AND name = ?", product.ID, name).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			attr = models.ProductAttribute{ID: uuid.New(), ProductID: product.ID, Name: name, Value: value}
			if err := tx.Create(&attr).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&attr).Update("value", value).Error; err != nil {
				return err
			}
		}
		result.AttributesWritten++
	}
	return nil
}

func importTelemetrySchema(tx *gorm.DB, f *excelize.File, tasks map[string]models.Task, result *ImportResult) error {
	rows, err := sheetRows(f, SheetTelemetry)
	if err != nil {
		return err
	}
	idx, err := headerIndex(rows[0], headersTelemetry)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", SheetTelemetry, err)
	}

	for i, row := range rows[1:] {
		rowNum := i + 2
		taskName := cellAt(row, idx["Task"])
		attrName := cellAt(row, idx["Attribute"])
		if taskName == "" || attrName == "" {
			result.warn("sheet %q row %d: task and attribute are required", SheetTelemetry, rowNum)
			continue
		}
		task, ok := tasks[strings.ToLower(taskName)]
		if !ok {
			result.warn("sheet %q row %d: unknown task %q", SheetTelemetry, rowNum, taskName)
			continue
		}

		dataType, err := models.ParseAttributeType(cellAt(row, idx["Data Type"]))
		if err != nil {
			result.warn("sheet %q row %d: %v, using STRING", SheetTelemetry, rowNum, err)
			dataType = models.TypeString
		}
		required, _ := strconv.ParseBool(cellAt(row, idx["Required"]))

		criteria, err := unmarshalCriteria(cellAt(row, idx["Success Criteria"]))
		if err != nil {
			result.warn("sheet %q row %d: %v", SheetTelemetry, rowNum, err)
			criteria = Criteria{}
		}
		if criteria.Operator != "" && !telemetry.ValidOperator(criteria.Operator) {
			result.warn("sheet %q row %d: invalid operator %q", SheetTelemetry, rowNum, criteria.Operator)
			criteria = Criteria{}
		}

		var attr models.TelemetryAttribute
		err = tx.First(&attr, "task_id = ? AND name = ?", task.ID, attrName).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			attr = models.TelemetryAttribute{
				ID:            uuid.New(),
				TaskID:        task.ID,
				Name:          attrName,
				Description:   cellAt(row, idx["Description"]),
				DataType:      dataType,
				Required:      required,
				Operator:      criteria.Operator,
				ExpectedValue: criteria.ExpectedValue,
			}
			if err := tx.Create(&attr).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&attr).Updates(map[string]any{
				"description":    cellAt(row, idx["Description"]),
				"data_type":      dataType,
				"required":       required,
				"operator":       criteria.Operator,
				"expected_value": criteria.ExpectedValue,
			}).Error; err != nil {
				return err
			}
		}
		result.AttributesWritten++
	}
	return nil
}

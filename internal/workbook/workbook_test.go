package workbook_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"adoptd/internal/models"
	"adoptd/internal/telemetry"
	"adoptd/internal/testutil"
	"adoptd/internal/workbook"
)

// sampleProduct assembles an in-memory template the way the export path
// expects it: associations preloaded on the struct.
func sampleProduct() *models.Product {
	p := &models.Product{ID: uuid.New(), Name: "SD-WAN", Description: "Software-defined WAN"}
	outcome := models.Outcome{ID: uuid.New(), ProductID: &p.ID, Name: "Resilient connectivity"}
	release := models.Release{ID: uuid.New(), ProductID: &p.ID, Name: "20.12"}
	p.Outcomes = []models.Outcome{outcome}
	p.Releases = []models.Release{release}
	p.Attributes = []models.ProductAttribute{
		{ID: uuid.New(), ProductID: p.ID, Name: "vertical", Value: "retail"},
	}

	task := models.Task{
		ID:             uuid.New(),
		ProductID:      &p.ID,
		Name:           "Enable HA",
		Description:    "Activate high availability",
		Weight:         25,
		SequenceNumber: 1,
		LicenseLevel:   models.LicenseAdvantage,
		Outcomes:       []models.Outcome{outcome},
		Releases:       []models.Release{release},
		TelemetryAttributes: []models.TelemetryAttribute{{
			ID:            uuid.New(),
			Name:          "sessions",
			DataType:      models.TypeNumber,
			Required:      true,
			Operator:      telemetry.OpGTE,
			ExpectedValue: "10",
		}},
	}
	plain := models.Task{
		ID:             uuid.New(),
		ProductID:      &p.ID,
		Name:           "Onboard sites",
		Weight:         75,
		SequenceNumber: 2,
		LicenseLevel:   models.LicenseEssential,
	}
	p.Tasks = []models.Task{task, plain}
	return p
}

func exportBytes(t *testing.T, p *models.Product) []byte {
	t.Helper()
	f, err := workbook.ExportProduct(p)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestExportImportRoundTrip(t *testing.T) {
	database := testutil.NewTestDB(t)
	data := exportBytes(t, sampleProduct())

	result, err := workbook.ImportProduct(context.Background(), database, bytes.NewReader(data))
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, 2, result.TasksCreated)
	assert.Equal(t, 0, result.TasksUpdated)
	assert.Equal(t, 1, result.OutcomesCreated)
	assert.Equal(t, 1, result.ReleasesCreated)
	assert.Empty(t, result.Warnings)

	var product models.Product
	require.NoError(t, database.
		Preload("Tasks.Outcomes").
		Preload("Tasks.TelemetryAttributes").
		First(&product, "id = ?", result.ProductID).Error)
	assert.Equal(t, "SD-WAN", product.Name)
	require.Len(t, product.Tasks, 2)

	for _, task := range product.Tasks {
		if task.Name != "Enable HA" {
			continue
		}
		assert.Equal(t, 25.0, task.Weight)
		assert.Equal(t, models.LicenseAdvantage, task.LicenseLevel)
		require.Len(t, task.Outcomes, 1)
		require.Len(t, task.TelemetryAttributes, 1)
		attr := task.TelemetryAttributes[0]
		assert.Equal(t, "sessions", attr.Name)
		assert.True(t, attr.Required)
		assert.Equal(t, telemetry.OpGTE, attr.Operator)
		assert.Equal(t, "10", attr.ExpectedValue)
	}
}

func TestReimportUpdatesByName(t *testing.T) {
	database := testutil.NewTestDB(t)
	p := sampleProduct()
	data := exportBytes(t, p)

	first, err := workbook.ImportProduct(context.Background(), database, bytes.NewReader(data))
	require.NoError(t, err)

	// Same workbook content, fresh IDs: matching falls back to names.
	p2 := sampleProduct()
	p2.Name = p.Name
	p2.Tasks[0].Name = "Enable HA"
	second, err := workbook.ImportProduct(context.Background(), database, exportReaderBytes(t, p2))
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.ProductID, second.ProductID)
	assert.Equal(t, 0, second.TasksCreated)
	assert.Equal(t, 2, second.TasksUpdated)

	var count int64
	require.NoError(t, database.Model(&models.Task{}).
		Where("product_id = ?", first.ProductID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func exportReaderBytes(t *testing.T, p *models.Product) *bytes.Reader {
	t.Helper()
	return bytes.NewReader(exportBytes(t, p))
}

func TestImportMissingSheetFails(t *testing.T) {
	database := testutil.NewTestDB(t)

	f := excelize.NewFile()
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := workbook.ImportProduct(context.Background(), database, bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), workbook.SheetProductInfo)
}

func TestImportRowWarningsDoNotAbort(t *testing.T) {
	database := testutil.NewTestDB(t)

	f, err := workbook.ExportProduct(sampleProduct())
	require.NoError(t, err)
	// Corrupt one task row: bad weight and an unknown license level.
	require.NoError(t, f.SetCellValue(workbook.SheetTasks, "D2", "heavy"))
	require.NoError(t, f.SetCellValue(workbook.SheetTasks, "F2", "PLATINUM"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := workbook.ImportProduct(context.Background(), database, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, result.TasksCreated)
	assert.NotEmpty(t, result.Warnings)

	var task models.Task
	require.NoError(t, database.First(&task, "product_id = ? AND name = ?", result.ProductID, "Enable HA").Error)
	assert.Equal(t, 0.0, task.Weight)
	assert.Equal(t, models.LicenseEssential, task.LicenseLevel)
}

func TestTelemetryTemplateRoundTrip(t *testing.T) {
	attrID := uuid.New()
	templateTaskID := uuid.New()
	tasks := []models.CustomerTask{{
		ID:             uuid.New(),
		TemplateTaskID: templateTaskID,
		Name:           "Enable HA",
		SequenceNumber: 1,
	}}
	attrs := map[string][]models.TelemetryAttribute{
		templateTaskID.String(): {{
			ID:            attrID,
			TaskID:        templateTaskID,
			Name:          "sessions",
			DataType:      models.TypeNumber,
			Required:      true,
			Operator:      telemetry.OpGTE,
			ExpectedValue: "10",
		}},
	}

	f, err := workbook.ExportTelemetryTemplate(tasks, attrs)
	require.NoError(t, err)

	// Fill in the Value column the way an operator would.
	require.NoError(t, f.SetCellValue(workbook.SheetTelemetry, "H2", "12"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := workbook.ParseTelemetryWorkbook(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Enable HA", rows[0].TaskName)
	assert.Equal(t, "sessions", rows[0].AttributeName)
	assert.Equal(t, "12", rows[0].Value)
}

func TestParseTelemetrySkipsBlankValues(t *testing.T) {
	tasks := []models.CustomerTask{{
		ID:             uuid.New(),
		TemplateTaskID: uuid.New(),
		Name:           "Enable HA",
	}}
	f, err := workbook.ExportTelemetryTemplate(tasks, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := workbook.ParseTelemetryWorkbook(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"adoptd/internal/models"
	"adoptd/internal/workbook"
)

// handleTelemetryTemplate serves the fill-in workbook for a plan: one row per
// task/attribute pair with an empty Value column.
func (a *API) handleTelemetryTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var p models.AdoptionPlan
	if err := orm.First(&p, "id = ?", id).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	var tasks []models.CustomerTask
	if err := orm.Where("plan_id = ? AND stale = ?", id, false).
		Order("sequence_number").Find(&tasks).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	templateIDs := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		templateIDs = append(templateIDs, t.TemplateTaskID)
	}
	attrsByTemplate := map[string][]models.TelemetryAttribute{}
	if len(templateIDs) > 0 {
		var attrs []models.TelemetryAttribute
		if err := orm.Where("task_id IN ?", templateIDs).Order("name").Find(&attrs).Error; err != nil {
			respondStoreError(w, err)
			return
		}
		for _, attr := range attrs {
			key := attr.TaskID.String()
			attrsByTemplate[key] = append(attrsByTemplate[key], attr)
		}
	}

	f, err := workbook.ExportTelemetryTemplate(tasks, attrsByTemplate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.archiveWorkbook(ctx, fmt.Sprintf("exports/telemetry-templates/%s/%d.xlsx", id, time.Now().Unix()), buf.Bytes())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "telemetry-"+id.String()+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleImportTelemetry(w http.ResponseWriter, r *http.Request) {
	a.importTelemetry(w, r, false)
}

func (a *API) handleImportSolutionTelemetry(w http.ResponseWriter, r *http.Request) {
	a.importTelemetry(w, r, true)
}

// importTelemetry parses an uploaded workbook and applies its rows. Row-level
// failures accumulate in the summary instead of aborting; already committed
// rows stay committed.
func (a *API) importTelemetry(w http.ResponseWriter, r *http.Request, solution bool) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	file, _, err := workbookUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	rows, err := workbook.ParseTelemetryWorkbook(file)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var summary any
	if solution {
		summary, err = a.importer.ImportSolutionPlan(ctx, id, rows)
	} else {
		summary, err = a.importer.ImportPlan(ctx, id, rows)
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "telemetry.import", "adoption_plan", id.String(), map[string]any{
		"rows":     len(rows),
		"solution": solution,
	})
	respondJSON(w, http.StatusOK, summary)
}

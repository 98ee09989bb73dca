package handlers

import (
	"net/http"

	"adoptd/internal/models"
)

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var task models.CustomerTask
	err = a.store.ORM.WithContext(ctx).
		Preload("TelemetryValues").
		First(&task, "id = ?", id).Error
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (a *API) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status string  `json:"status"`
		Notes  *string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	status, err := models.ParseTaskStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	task, p, err := a.plans.UpdateTaskStatus(ctx, id, status, req.Notes, models.SourceManual)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "task.status", "customer_task", id.String(), map[string]any{
		"status": string(status),
	})
	respondJSON(w, http.StatusOK, map[string]any{"task": task, "plan": p})
}

func (a *API) handleGetSolutionTask(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var task models.CustomerSolutionTask
	err = a.store.ORM.WithContext(ctx).
		Preload("TelemetryValues").
		First(&task, "id = ?", id).Error
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (a *API) handleUpdateSolutionTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status string  `json:"status"`
		Notes  *string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	status, err := models.ParseTaskStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	task, sp, err := a.plans.UpdateSolutionTaskStatus(ctx, id, status, req.Notes, models.SourceManual)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "solution_task.status", "customer_solution_task", id.String(), map[string]any{
		"status": string(status),
	})
	respondJSON(w, http.StatusOK, map[string]any{"task": task, "plan": sp})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/models"
)

func (a *API) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerProductID uuid.UUID `json:"customer_product_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.CustomerProductID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("customer_product_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	p, err := a.plans.CreatePlan(ctx, req.CustomerProductID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "plan.create", "adoption_plan", p.ID.String(), nil)
	respondJSON(w, http.StatusCreated, map[string]any{"plan": p})
}

func (a *API) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var p models.AdoptionPlan
	err = a.store.ORM.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number") }).
		Preload("Tasks.TelemetryValues").
		First(&p, "id = ?", id).Error
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"plan": p})
}

func (a *API) handleSyncPlan(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	p, err := a.plans.SyncPlan(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "plan.sync", "adoption_plan", id.String(), map[string]any{
		"needs_sync": p.NeedsSync,
	})
	respondJSON(w, http.StatusOK, map[string]any{"plan": p})
}

// handleRemoveStaleTasks is the destructive half of the sync policy: it
// deletes tasks kept only because they carried progress, after an operator
// confirms.
func (a *API) handleRemoveStaleTasks(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	p, err := a.plans.RemoveStaleTasks(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "plan.remove_stale", "adoption_plan", id.String(), nil)
	respondJSON(w, http.StatusOK, map[string]any{"plan": p})
}

func (a *API) handleCreateSolutionPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerSolutionID uuid.UUID `json:"customer_solution_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.CustomerSolutionID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("customer_solution_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	sp, err := a.plans.CreateSolutionPlan(ctx, req.CustomerSolutionID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "solution_plan.create", "solution_plan", sp.ID.String(), nil)
	respondJSON(w, http.StatusCreated, map[string]any{"plan": sp})
}

func (a *API) handleGetSolutionPlan(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var sp models.SolutionAdoptionPlan
	err = a.store.ORM.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number") }).
		Preload("Tasks.TelemetryValues").
		Preload("ProductPlans").
		Preload("ProductPlans.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number") }).
		First(&sp, "id = ?", id).Error
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"plan": sp})
}

func (a *API) handleSyncSolutionPlan(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "planID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	sp, err := a.plans.SyncSolutionPlan(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "solution_plan.sync", "solution_plan", id.String(), map[string]any{
		"needs_sync": sp.NeedsSync,
	})
	respondJSON(w, http.StatusOK, map[string]any{"plan": sp})
}

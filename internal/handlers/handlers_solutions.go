package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/models"
)

func (a *API) handleListSolutions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var solutions []models.Solution
	if err := a.store.ORM.WithContext(ctx).Order("name").Find(&solutions).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"solutions": solutions})
}

func (a *API) handleCreateSolution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		ProductIDs  []uuid.UUID `json:"product_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	solution := models.Solution{ID: uuid.New(), Name: req.Name, Description: req.Description}
	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&solution).Error; err != nil {
			return err
		}
		return replaceSolutionMembers(tx, solution.ID, req.ProductIDs)
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "solution.create", "solution", solution.ID.String(), map[string]any{
		"name":     solution.Name,
		"products": len(req.ProductIDs),
	})
	respondJSON(w, http.StatusCreated, map[string]any{"solution": solution})
}

func (a *API) handleGetSolution(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "solutionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var solution models.Solution
	err = a.store.ORM.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Members.Product").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number") }).
		Preload("Tasks.TelemetryAttributes").
		Preload("Outcomes").
		Preload("Releases").
		First(&solution, "id = ?", id).Error
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"solution": solution})
}

func (a *API) handleUpdateSolution(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "solutionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondError(w, http.StatusBadRequest, errors.New("name must not be empty"))
			return
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	var solution models.Solution
	if err := orm.First(&solution, "id = ?", id).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	if err := orm.Model(&solution).Updates(updates).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "solution.update", "solution", id.String(), updates)
	respondJSON(w, http.StatusOK, map[string]any{"solution": solution})
}

func (a *API) handleDeleteSolution(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "solutionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res := a.store.ORM.WithContext(ctx).Delete(&models.Solution{}, "id = ?", id)
	if res.Error != nil {
		respondStoreError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondStoreError(w, gorm.ErrRecordNotFound)
		return
	}

	a.audit.Record(ctx, "solution.delete", "solution", id.String(), nil)
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// handleSetSolutionProducts replaces the ordered member list. Plans built
// from this solution pick the change up on their next sync.
func (a *API) handleSetSolutionProducts(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "solutionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ProductIDs []uuid.UUID `json:"product_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var solution models.Solution
		if err := tx.First(&solution, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("solution_id = ?", id).Delete(&models.SolutionProduct{}).Error; err != nil {
			return err
		}
		return replaceSolutionMembers(tx, id, req.ProductIDs)
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "solution.members.replace", "solution", id.String(), map[string]any{
		"products": len(req.ProductIDs),
	})
	respondJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func replaceSolutionMembers(tx *gorm.DB, solutionID uuid.UUID, productIDs []uuid.UUID) error {
	for i, pid := range productIDs {
		var product models.Product
		if err := tx.First(&product, "id = ?", pid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("unknown product " + pid.String())
			}
			return err
		}
		member := models.SolutionProduct{
			ID:         uuid.New(),
			SolutionID: solutionID,
			ProductID:  pid,
			Position:   i,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
	}
	return nil
}

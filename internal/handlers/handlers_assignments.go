package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/models"
)

// handleAssignProduct assigns a product to a customer at a license level and
// immediately builds the adoption plan for the assignment.
func (a *API) handleAssignProduct(w http.ResponseWriter, r *http.Request) {
	customerID, err := urlUUID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ProductID    uuid.UUID   `json:"product_id"`
		LicenseLevel string      `json:"license_level"`
		OutcomeIDs   []uuid.UUID `json:"outcome_ids"`
		ReleaseIDs   []uuid.UUID `json:"release_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.ProductID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("product_id is required"))
		return
	}
	level := models.LicenseEssential
	if req.LicenseLevel != "" {
		level, err = models.ParseLicenseLevel(req.LicenseLevel)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	assignment := models.CustomerProduct{
		ID:           uuid.New(),
		CustomerID:   customerID,
		ProductID:    req.ProductID,
		LicenseLevel: level,
	}
	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Customer{}, "id = ?", customerID).Error; err != nil {
			return err
		}
		if err := tx.First(&models.Product{}, "id = ?", req.ProductID).Error; err != nil {
			return err
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		if err := replaceScopeSelection(tx, &assignment, "SelectedOutcomes", outcomeRefs(req.OutcomeIDs)); err != nil {
			return err
		}
		return replaceScopeSelection(tx, &assignment, "SelectedReleases", releaseRefs(req.ReleaseIDs))
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	p, err := a.plans.CreatePlan(ctx, assignment.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "customer.assign_product", "customer_product", assignment.ID.String(), map[string]any{
		"customer_id":   customerID.String(),
		"product_id":    req.ProductID.String(),
		"license_level": string(level),
	})
	respondJSON(w, http.StatusCreated, map[string]any{"assignment": assignment, "plan": p})
}

// handleAssignSolution assigns a solution and builds the solution plan plus
// one member plan per product in the solution.
func (a *API) handleAssignSolution(w http.ResponseWriter, r *http.Request) {
	customerID, err := urlUUID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		SolutionID   uuid.UUID   `json:"solution_id"`
		LicenseLevel string      `json:"license_level"`
		OutcomeIDs   []uuid.UUID `json:"outcome_ids"`
		ReleaseIDs   []uuid.UUID `json:"release_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.SolutionID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("solution_id is required"))
		return
	}
	level := models.LicenseEssential
	if req.LicenseLevel != "" {
		level, err = models.ParseLicenseLevel(req.LicenseLevel)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	assignment := models.CustomerSolution{
		ID:           uuid.New(),
		CustomerID:   customerID,
		SolutionID:   req.SolutionID,
		LicenseLevel: level,
	}
	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Customer{}, "id = ?", customerID).Error; err != nil {
			return err
		}
		if err := tx.First(&models.Solution{}, "id = ?", req.SolutionID).Error; err != nil {
			return err
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		if err := replaceScopeSelection(tx, &assignment, "SelectedOutcomes", outcomeRefs(req.OutcomeIDs)); err != nil {
			return err
		}
		return replaceScopeSelection(tx, &assignment, "SelectedReleases", releaseRefs(req.ReleaseIDs))
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	sp, err := a.plans.CreateSolutionPlan(ctx, assignment.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "customer.assign_solution", "customer_solution", assignment.ID.String(), map[string]any{
		"customer_id":   customerID.String(),
		"solution_id":   req.SolutionID.String(),
		"license_level": string(level),
	})
	respondJSON(w, http.StatusCreated, map[string]any{"assignment": assignment, "plan": sp})
}

func replaceScopeSelection(tx *gorm.DB, assignment any, association string, refs any) error {
	return tx.Model(assignment).Association(association).Replace(refs)
}

func outcomeRefs(ids []uuid.UUID) []models.Outcome {
	out := make([]models.Outcome, len(ids))
	for i, id := range ids {
		out[i] = models.Outcome{ID: id}
	}
	return out
}

func releaseRefs(ids []uuid.UUID) []models.Release {
	out := make([]models.Release, len(ids))
	for i, id := range ids {
		out[i] = models.Release{ID: id}
	}
	return out
}

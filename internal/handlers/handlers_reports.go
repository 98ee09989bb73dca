package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"adoptd/pkg/db"
)

type productProgressRow struct {
	PlanID             uuid.UUID `db:"plan_id" json:"plan_id"`
	ProductName        string    `db:"product_name" json:"product_name"`
	LicenseLevel       string    `db:"license_level" json:"license_level"`
	TotalTasks         int       `db:"total_tasks" json:"total_tasks"`
	CompletedTasks     int       `db:"completed_tasks" json:"completed_tasks"`
	ProgressPercentage float64   `db:"progress_percentage" json:"progress_percentage"`
	NeedsSync          bool      `db:"needs_sync" json:"needs_sync"`
}

type solutionProgressRow struct {
	PlanID             uuid.UUID `db:"plan_id" json:"plan_id"`
	SolutionName       string    `db:"solution_name" json:"solution_name"`
	LicenseLevel       string    `db:"license_level" json:"license_level"`
	TotalTasks         int       `db:"total_tasks" json:"total_tasks"`
	CompletedTasks     int       `db:"completed_tasks" json:"completed_tasks"`
	ProgressPercentage float64   `db:"progress_percentage" json:"progress_percentage"`
	NeedsSync          bool      `db:"needs_sync" json:"needs_sync"`
}

const productProgressQuery = `
SELECT ap.id AS plan_id,
       p.name AS product_name,
       cp.license_level,
       ap.total_tasks,
       ap.completed_tasks,
       ap.progress_percentage,
       ap.needs_sync
FROM adoption_plans ap
JOIN customer_products cp ON cp.id = ap.customer_product_id
JOIN products p ON p.id = cp.product_id
WHERE cp.customer_id = $1 AND p.deleted_at IS NULL
ORDER BY p.name`

const solutionProgressQuery = `
SELECT sap.id AS plan_id,
       s.name AS solution_name,
       cs.license_level,
       sap.total_tasks,
       sap.completed_tasks,
       sap.progress_percentage,
       sap.needs_sync
FROM solution_adoption_plans sap
JOIN customer_solutions cs ON cs.id = sap.customer_solution_id
JOIN solutions s ON s.id = cs.solution_id
WHERE cs.customer_id = $1 AND s.deleted_at IS NULL
ORDER BY s.name`

// handleCustomerProgress is a pure read over the persisted plan counters,
// served from the pgx pool rather than the ORM.
func (a *API) handleCustomerProgress(w http.ResponseWriter, r *http.Request) {
	if a.store.DB == nil {
		respondError(w, http.StatusFailedDependency, errors.New("reporting pool not configured"))
		return
	}

	id, err := urlUUID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	products := []productProgressRow{}
	if err := db.Select(ctx, a.store.DB, &products, productProgressQuery, id); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	solutions := []solutionProgressRow{}
	if err := db.Select(ctx, a.store.DB, &solutions, solutionProgressQuery, id); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"customer_id": id,
		"products":    products,
		"solutions":   solutions,
	})
}

package plan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/models"
)

// CreateSolutionPlan finds or creates the solution adoption plan for a
// customer-solution assignment, materializes one product plan per member
// product, and syncs everything in a single transaction.
func (s *Service) CreateSolutionPlan(ctx context.Context, customerSolutionID uuid.UUID) (*models.SolutionAdoptionPlan, error) {
	start := time.Now()
	var out models.SolutionAdoptionPlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cs models.CustomerSolution
		if err := tx.Preload("SelectedOutcomes").Preload("SelectedReleases").
			First(&cs, "id = ?", customerSolutionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return err
		}

		var sp models.SolutionAdoptionPlan
		err := tx.First(&sp, "customer_solution_id = ?", cs.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sp = models.SolutionAdoptionPlan{
				ID:                 uuid.New(),
				CustomerSolutionID: cs.ID,
				CustomerID:         cs.CustomerID,
				SolutionID:         cs.SolutionID,
			}
			if err := tx.Create(&sp).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if err := syncSolutionPlanTx(tx, &sp, &cs); err != nil {
			return err
		}
		out = sp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSolutionSync(ctx, &out, start)
	return &out, nil
}

// SyncSolutionPlan re-syncs every member product plan and the solution-level
// tasks, then rolls the counters up into the solution plan.
func (s *Service) SyncSolutionPlan(ctx context.Context, planID uuid.UUID) (*models.SolutionAdoptionPlan, error) {
	start := time.Now()
	var out models.SolutionAdoptionPlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sp models.SolutionAdoptionPlan
		if err := tx.First(&sp, "id = ?", planID).Error; err != nil {
			return err
		}
		var cs models.CustomerSolution
		if err := tx.Preload("SelectedOutcomes").Preload("SelectedReleases").
			First(&cs, "id = ?", sp.CustomerSolutionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return err
		}
		if err := syncSolutionPlanTx(tx, &sp, &cs); err != nil {
			return err
		}
		out = sp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSolutionSync(ctx, &out, start)
	return &out, nil
}

func syncSolutionPlanTx(tx *gorm.DB, sp *models.SolutionAdoptionPlan, cs *models.CustomerSolution) error {
	var solution models.Solution
	if err := tx.First(&solution, "id = ?", sp.SolutionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateDeleted
		}
		return err
	}

	sc := newScope(cs.LicenseLevel, cs.SelectedOutcomes, cs.SelectedReleases)

	var members []models.SolutionProduct
	if err := tx.Where("solution_id = ?", sp.SolutionID).
		Order("position asc").Find(&members).Error; err != nil {
		return err
	}

	var productPlans []models.AdoptionPlan
	if err := tx.Where("solution_plan_id = ?", sp.ID).Find(&productPlans).Error; err != nil {
		return err
	}
	byProduct := make(map[uuid.UUID]*models.AdoptionPlan, len(productPlans))
	for i := range productPlans {
		byProduct[productPlans[i].ProductID] = &productPlans[i]
	}

	memberIDs := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		memberIDs[m.ProductID] = struct{}{}
		p, ok := byProduct[m.ProductID]
		if !ok {
			created := models.AdoptionPlan{
				ID:             uuid.New(),
				SolutionPlanID: &sp.ID,
				CustomerID:     sp.CustomerID,
				ProductID:      m.ProductID,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			p = &created
		}
		if err := syncProductPlan(tx, p, sc); err != nil {
			return err
		}
	}

	for productID, p := range byProduct {
		if _, ok := memberIDs[productID]; ok {
			continue
		}
		if err := retireMemberPlan(tx, p); err != nil {
			return err
		}
	}

	if err := syncSolutionTasks(tx, sp, sc); err != nil {
		return err
	}

	return rollupTx(tx, sp)
}

// retireMemberPlan applies the removal policy to a product plan whose product
// is no longer a member of the solution. A plan whose tasks carry no progress
// is deleted outright with its tasks and telemetry history; otherwise the
// tasks are kept, marked stale, and the plan is flagged needsSync until an
// operator confirms removal.
func retireMemberPlan(tx *gorm.DB, p *models.AdoptionPlan) error {
	var tasks []models.CustomerTask
	if err := tx.Where("plan_id = ?", p.ID).Find(&tasks).Error; err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ID)
	}
	valueCounts, err := telemetryCounts(tx, "customer_task_id", ids)
	if err != nil {
		return err
	}

	hasProgress := false
	for i := range tasks {
		if taskHasProgress(&tasks[i], valueCounts[tasks[i].ID]) {
			hasProgress = true
			break
		}
	}

	if !hasProgress {
		if len(ids) > 0 {
			if err := tx.Where("customer_task_id IN ?", ids).Delete(&models.TelemetryValue{}).Error; err != nil {
				return err
			}
			if err := tx.Where("plan_id = ?", p.ID).Delete(&models.CustomerTask{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.AdoptionPlan{}, "id = ?", p.ID).Error
	}

	if err := tx.Model(&models.CustomerTask{}).Where("plan_id = ?", p.ID).
		Update("stale", true).Error; err != nil {
		return err
	}
	if err := recomputePlanTx(tx, p); err != nil {
		return err
	}
	p.NeedsSync = true
	return tx.Model(&models.AdoptionPlan{}).Where("id = ?", p.ID).
		Update("needs_sync", true).Error
}

// syncSolutionTasks mirrors syncProductPlan for the solution-level task rows.
func syncSolutionTasks(tx *gorm.DB, sp *models.SolutionAdoptionPlan, sc scope) error {
	var tmpl []models.Task
	if err := tx.Preload("Outcomes").Preload("Releases").
		Where("solution_id = ?", sp.SolutionID).
		Order("sequence_number asc").
		Find(&tmpl).Error; err != nil {
		return err
	}

	var existing []models.CustomerSolutionTask
	if err := tx.Where("plan_id = ?", sp.ID).Find(&existing).Error; err != nil {
		return err
	}

	byTemplate := make(map[uuid.UUID]*models.CustomerSolutionTask, len(existing))
	ids := make([]uuid.UUID, 0, len(existing))
	for i := range existing {
		byTemplate[existing[i].TemplateTaskID] = &existing[i]
		ids = append(ids, existing[i].ID)
	}

	valueCounts, err := telemetryCounts(tx, "solution_task_id", ids)
	if err != nil {
		return err
	}

	seq := 0
	var creates []models.CustomerSolutionTask
	matched := make(map[uuid.UUID]struct{}, len(tmpl))
	for _, t := range tmpl {
		if !sc.admits(t) {
			continue
		}
		seq++
		if st, ok := byTemplate[t.ID]; ok {
			matched[t.ID] = struct{}{}
			if err := tx.Model(&models.CustomerSolutionTask{}).Where("id = ?", st.ID).
				Updates(map[string]any{
					"name":            t.Name,
					"description":     t.Description,
					"weight":          t.Weight,
					"license_level":   t.LicenseLevel,
					"sequence_number": seq,
					"stale":           false,
				}).Error; err != nil {
				return err
			}
			continue
		}
		creates = append(creates, models.CustomerSolutionTask{
			ID:             uuid.New(),
			PlanID:         sp.ID,
			TemplateTaskID: t.ID,
			Name:           t.Name,
			Description:    t.Description,
			Weight:         t.Weight,
			SequenceNumber: seq,
			LicenseLevel:   t.LicenseLevel,
			Status:         models.StatusNotStarted,
			StatusSource:   models.SourceManual,
		})
	}
	if len(creates) > 0 {
		if err := tx.Create(&creates).Error; err != nil {
			return err
		}
	}

	stale := false
	for i := range existing {
		st := &existing[i]
		if _, ok := matched[st.TemplateTaskID]; ok {
			continue
		}
		hasProgress := st.Status != models.StatusNotStarted || st.Notes != "" || valueCounts[st.ID] > 0
		if hasProgress {
			seq++
			stale = true
			if err := tx.Model(&models.CustomerSolutionTask{}).Where("id = ?", st.ID).
				Updates(map[string]any{"stale": true, "sequence_number": seq}).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Where("solution_task_id = ?", st.ID).Delete(&models.TelemetryValue{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.CustomerSolutionTask{}, "id = ?", st.ID).Error; err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	sp.LastSyncedAt = &now
	sp.NeedsSync = stale
	return tx.Model(&models.SolutionAdoptionPlan{}).Where("id = ?", sp.ID).
		Updates(map[string]any{
			"needs_sync":     stale,
			"last_synced_at": now,
		}).Error
}

// rollupTx sums each member product plan's counters plus the solution-level
// task counters into the solution plan row.
func rollupTx(tx *gorm.DB, sp *models.SolutionAdoptionPlan) error {
	var productPlans []models.AdoptionPlan
	if err := tx.Where("solution_plan_id = ?", sp.ID).Find(&productPlans).Error; err != nil {
		return err
	}

	var solTasks []models.CustomerSolutionTask
	if err := tx.Where("plan_id = ?", sp.ID).Find(&solTasks).Error; err != nil {
		return err
	}

	parts := []Aggregates{RecomputeSolution(solTasks)}
	needsSync := sp.NeedsSync
	for _, pp := range productPlans {
		parts = append(parts, Aggregates{
			TotalTasks:      pp.TotalTasks,
			CompletedTasks:  pp.CompletedTasks,
			TotalWeight:     pp.TotalWeight,
			CompletedWeight: pp.CompletedWeight,
		})
		needsSync = needsSync || pp.NeedsSync
	}
	agg := Combine(parts...)

	sp.TotalTasks = agg.TotalTasks
	sp.CompletedTasks = agg.CompletedTasks
	sp.TotalWeight = agg.TotalWeight
	sp.CompletedWeight = agg.CompletedWeight
	sp.ProgressPercentage = agg.ProgressPercentage
	sp.NeedsSync = needsSync

	return tx.Model(&models.SolutionAdoptionPlan{}).Where("id = ?", sp.ID).
		Updates(map[string]any{
			"total_tasks":         agg.TotalTasks,
			"completed_tasks":     agg.CompletedTasks,
			"total_weight":        agg.TotalWeight,
			"completed_weight":    agg.CompletedWeight,
			"progress_percentage": agg.ProgressPercentage,
			"needs_sync":          needsSync,
		}).Error
}

func (s *Service) afterSolutionSync(ctx context.Context, sp *models.SolutionAdoptionPlan, start time.Time) {
	agg := &models.AdoptionPlan{
		ID:                 sp.ID,
		CustomerID:         sp.CustomerID,
		ProgressPercentage: sp.ProgressPercentage,
		NeedsSync:          sp.NeedsSync,
	}
	s.afterSync(ctx, "solution", agg, start)
}

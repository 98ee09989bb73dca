package plan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/metrics"
	"adoptd/internal/models"
	"adoptd/pkg/bus"
)

// UpdateTaskStatus applies a manual or telemetry-driven status change to one
// plan task and recomputes its owning plan's aggregates in the same
// transaction. When the plan belongs to a solution, the parent's rolled-up
// counters are refreshed too.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status models.TaskStatus, notes *string, source models.StatusSource) (*models.CustomerTask, *models.AdoptionPlan, error) {
	var (
		outTask models.CustomerTask
		outPlan models.AdoptionPlan
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ct models.CustomerTask
		if err := tx.First(&ct, "id = ?", taskID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":            status,
			"status_source":     source,
			"status_updated_at": now,
		}
		ct.Status = status
		ct.StatusSource = source
		ct.StatusUpdatedAt = &now
		if notes != nil {
			updates["notes"] = *notes
			ct.Notes = *notes
		}
		if err := tx.Model(&models.CustomerTask{}).Where("id = ?", ct.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		var p models.AdoptionPlan
		if err := tx.First(&p, "id = ?", ct.PlanID).Error; err != nil {
			return err
		}
		if err := recomputePlanTx(tx, &p); err != nil {
			return err
		}

		if p.SolutionPlanID != nil {
			var sp models.SolutionAdoptionPlan
			if err := tx.First(&sp, "id = ?", *p.SolutionPlanID).Error; err != nil {
				return err
			}
			if err := rollupTx(tx, &sp); err != nil {
				return err
			}
		}

		outTask = ct
		outPlan = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.StatusUpdates.WithLabelValues(string(source)).Inc()
	_ = s.bus.Publish(ctx, bus.SubjectTaskStatus, StatusEvent{
		TaskID:   outTask.ID,
		PlanID:   outPlan.ID,
		Status:   string(outTask.Status),
		Source:   string(outTask.StatusSource),
		Progress: outPlan.ProgressPercentage,
	})
	return &outTask, &outPlan, nil
}

// UpdateSolutionTaskStatus is the solution-level-task variant; the rollup
// always refreshes the owning solution plan.
func (s *Service) UpdateSolutionTaskStatus(ctx context.Context, taskID uuid.UUID, status models.TaskStatus, notes *string, source models.StatusSource) (*models.CustomerSolutionTask, *models.SolutionAdoptionPlan, error) {
	var (
		outTask models.CustomerSolutionTask
		outPlan models.SolutionAdoptionPlan
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.CustomerSolutionTask
		if err := tx.First(&st, "id = ?", taskID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":            status,
			"status_source":     source,
			"status_updated_at": now,
		}
		st.Status = status
		st.StatusSource = source
		st.StatusUpdatedAt = &now
		if notes != nil {
			updates["notes"] = *notes
			st.Notes = *notes
		}
		if err := tx.Model(&models.CustomerSolutionTask{}).Where("id = ?", st.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		var sp models.SolutionAdoptionPlan
		if err := tx.First(&sp, "id = ?", st.PlanID).Error; err != nil {
			return err
		}
		if err := rollupTx(tx, &sp); err != nil {
			return err
		}

		outTask = st
		outPlan = sp
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.StatusUpdates.WithLabelValues(string(source)).Inc()
	_ = s.bus.Publish(ctx, bus.SubjectTaskStatus, StatusEvent{
		TaskID:   outTask.ID,
		PlanID:   outPlan.ID,
		Status:   string(outTask.Status),
		Source:   string(outTask.StatusSource),
		Progress: outPlan.ProgressPercentage,
	})
	return &outTask, &outPlan, nil
}

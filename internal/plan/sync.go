package plan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/metrics"
	"adoptd/internal/models"
	"adoptd/pkg/bus"
)

// scope captures what an assignment admits from its template: tasks at or
// below the license tier, intersected with the selected outcome/release
// subsets when the assignment restricts to one. Untagged tasks always apply.
type scope struct {
	level      models.LicenseLevel
	outcomeIDs map[uuid.UUID]struct{}
	releaseIDs map[uuid.UUID]struct{}
}

func newScope(level models.LicenseLevel, outcomes []models.Outcome, releases []models.Release) scope {
	sc := scope{
		level:      level,
		outcomeIDs: make(map[uuid.UUID]struct{}, len(outcomes)),
		releaseIDs: make(map[uuid.UUID]struct{}, len(releases)),
	}
	for _, o := range outcomes {
		sc.outcomeIDs[o.ID] = struct{}{}
	}
	for _, r := range releases {
		sc.releaseIDs[r.ID] = struct{}{}
	}
	return sc
}

func (sc scope) admits(t models.Task) bool {
	if !t.LicenseLevel.CoveredBy(sc.level) {
		return false
	}
	if len(sc.outcomeIDs) > 0 && len(t.Outcomes) > 0 {
		hit := false
		for _, o := range t.Outcomes {
			if _, ok := sc.outcomeIDs[o.ID]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(sc.releaseIDs) > 0 && len(t.Releases) > 0 {
		hit := false
		for _, r := range t.Releases {
			if _, ok := sc.releaseIDs[r.ID]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// CreatePlan finds or creates the adoption plan for a customer-product
// assignment and syncs it against the current template.
func (s *Service) CreatePlan(ctx context.Context, customerProductID uuid.UUID) (*models.AdoptionPlan, error) {
	start := time.Now()
	var out models.AdoptionPlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cp models.CustomerProduct
		if err := tx.Preload("SelectedOutcomes").Preload("SelectedReleases").
			First(&cp, "id = ?", customerProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return err
		}

		var p models.AdoptionPlan
		err := tx.First(&p, "customer_product_id = ?", cp.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = models.AdoptionPlan{
				ID:                uuid.New(),
				CustomerProductID: &cp.ID,
				CustomerID:        cp.CustomerID,
				ProductID:         cp.ProductID,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		sc := newScope(cp.LicenseLevel, cp.SelectedOutcomes, cp.SelectedReleases)
		if err := syncProductPlan(tx, &p, sc); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSync(ctx, "product", &out, start)
	return &out, nil
}

// SyncPlan reconciles an existing plan's task set with its current template,
// preserving status, notes, and telemetry history on tasks that survive. The
// whole sync is one transaction; on error the prior plan is untouched.
func (s *Service) SyncPlan(ctx context.Context, planID uuid.UUID) (*models.AdoptionPlan, error) {
	start := time.Now()
	var out models.AdoptionPlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.AdoptionPlan
		if err := tx.First(&p, "id = ?", planID).Error; err != nil {
			return err
		}

		sc, err := resolveScope(tx, &p)
		if err != nil {
			return err
		}
		if err := syncProductPlan(tx, &p, sc); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSync(ctx, "product", &out, start)
	return &out, nil
}

// RemoveStaleTasks deletes tasks kept through sync because they carried
// progress, once an operator confirms the removal. Clears needsSync.
func (s *Service) RemoveStaleTasks(ctx context.Context, planID uuid.UUID) (*models.AdoptionPlan, error) {
	var out models.AdoptionPlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.AdoptionPlan
		if err := tx.First(&p, "id = ?", planID).Error; err != nil {
			return err
		}

		var stale []models.CustomerTask
		if err := tx.Where("plan_id = ? AND stale", p.ID).Find(&stale).Error; err != nil {
			return err
		}
		for _, ct := range stale {
			if err := tx.Where("customer_task_id = ?", ct.ID).Delete(&models.TelemetryValue{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.CustomerTask{}, "id = ?", ct.ID).Error; err != nil {
				return err
			}
		}

		if err := recomputePlanTx(tx, &p); err != nil {
			return err
		}
		if err := tx.Model(&models.AdoptionPlan{}).Where("id = ?", p.ID).
			Update("needs_sync", false).Error; err != nil {
			return err
		}
		p.NeedsSync = false
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func resolveScope(tx *gorm.DB, p *models.AdoptionPlan) (scope, error) {
	switch {
	case p.CustomerProductID != nil:
		var cp models.CustomerProduct
		if err := tx.Preload("SelectedOutcomes").Preload("SelectedReleases").
			First(&cp, "id = ?", *p.CustomerProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return scope{}, ErrAssignmentNotFound
			}
			return scope{}, err
		}
		return newScope(cp.LicenseLevel, cp.SelectedOutcomes, cp.SelectedReleases), nil

	case p.SolutionPlanID != nil:
		var sp models.SolutionAdoptionPlan
		if err := tx.First(&sp, "id = ?", *p.SolutionPlanID).Error; err != nil {
			return scope{}, err
		}
		var cs models.CustomerSolution
		if err := tx.Preload("SelectedOutcomes").Preload("SelectedReleases").
			First(&cs, "id = ?", sp.CustomerSolutionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return scope{}, ErrAssignmentNotFound
			}
			return scope{}, err
		}
		return newScope(cs.LicenseLevel, cs.SelectedOutcomes, cs.SelectedReleases), nil

	default:
		return scope{}, ErrAssignmentNotFound
	}
}

// syncProductPlan diffs the applicable template task set against the plan's
// existing rows, keyed by originating template-task id. Tasks present in both
// keep their status; newly applicable tasks insert at NOT_STARTED; tasks no
// longer applicable are removed when they carry no progress, otherwise kept
// and marked stale with the plan flagged needsSync.
func syncProductPlan(tx *gorm.DB, p *models.AdoptionPlan, sc scope) error {
	var product models.Product
	if err := tx.First(&product, "id = ?", p.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateDeleted
		}
		return err
	}

	var tmpl []models.Task
	if err := tx.Preload("Outcomes").Preload("Releases").
		Where("product_id = ?", p.ProductID).
		Order("sequence_number asc").
		Find(&tmpl).Error; err != nil {
		return err
	}

	var existing []models.CustomerTask
	if err := tx.Where("plan_id = ?", p.ID).Find(&existing).Error; err != nil {
		return err
	}

	byTemplate := make(map[uuid.UUID]*models.CustomerTask, len(existing))
	ids := make([]uuid.UUID, 0, len(existing))
	for i := range existing {
		byTemplate[existing[i].TemplateTaskID] = &existing[i]
		ids = append(ids, existing[i].ID)
	}

	valueCounts, err := telemetryCounts(tx, "customer_task_id", ids)
	if err != nil {
		return err
	}

	seq := 0
	var creates []models.CustomerTask
	matched := make(map[uuid.UUID]struct{}, len(tmpl))
	for _, t := range tmpl {
		if !sc.admits(t) {
			continue
		}
		seq++
		if ct, ok := byTemplate[t.ID]; ok {
			matched[t.ID] = struct{}{}
			ct.Name = t.Name
			ct.Description = t.Description
			ct.Weight = t.Weight
			ct.LicenseLevel = t.LicenseLevel
			ct.SequenceNumber = seq
			ct.Stale = false
			if err := tx.Model(&models.CustomerTask{}).Where("id = ?", ct.ID).
				Updates(map[string]any{
					"name":            ct.Name,
					"description":     ct.Description,
					"weight":          ct.Weight,
					"license_level":   ct.LicenseLevel,
					"sequence_number": ct.SequenceNumber,
					"stale":           false,
				}).Error; err != nil {
				return err
			}
			continue
		}
		creates = append(creates, models.CustomerTask{
			ID:             uuid.New(),
			PlanID:         p.ID,
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
		ct := &existing[i]
		if _, ok := matched[ct.TemplateTaskID]; ok {
			continue
		}
		if taskHasProgress(ct, valueCounts[ct.ID]) {
			seq++
			stale = true
			if err := tx.Model(&models.CustomerTask{}).Where("id = ?", ct.ID).
				Updates(map[string]any{"stale": true, "sequence_number": seq}).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Where("customer_task_id = ?", ct.ID).Delete(&models.TelemetryValue{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.CustomerTask{}, "id = ?", ct.ID).Error; err != nil {
			return err
		}
	}

	if err := recomputePlanTx(tx, p); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.NeedsSync = stale
	p.LastSyncedAt = &now
	return tx.Model(&models.AdoptionPlan{}).Where("id = ?", p.ID).
		Updates(map[string]any{
			"needs_sync":     stale,
			"last_synced_at": now,
		}).Error
}

// recomputePlanTx re-derives and persists the plan's aggregate counters from
// its current task rows, refreshing p in place.
func recomputePlanTx(tx *gorm.DB, p *models.AdoptionPlan) error {
	var tasks []models.CustomerTask
	if err := tx.Where("plan_id = ?", p.ID).Find(&tasks).Error; err != nil {
		return err
	}

	agg := Recompute(tasks)
	p.TotalTasks = agg.TotalTasks
	p.CompletedTasks = agg.CompletedTasks
	p.TotalWeight = agg.TotalWeight
	p.CompletedWeight = agg.CompletedWeight
	p.ProgressPercentage = agg.ProgressPercentage

	return tx.Model(&models.AdoptionPlan{}).Where("id = ?", p.ID).
		Updates(map[string]any{
			"total_tasks":         agg.TotalTasks,
			"completed_tasks":     agg.CompletedTasks,
			"total_weight":        agg.TotalWeight,
			"completed_weight":    agg.CompletedWeight,
			"progress_percentage": agg.ProgressPercentage,
		}).Error
}

func taskHasProgress(ct *models.CustomerTask, valueCount int64) bool {
	return ct.Status != models.StatusNotStarted || ct.Notes != "" || valueCount > 0
}

func telemetryCounts(tx *gorm.DB, column string, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	rows := []struct {
		TaskID uuid.UUID
		N      int64
	}{}
	if err := tx.Model(&models.TelemetryValue{}).
		Select(column+" as task_id, count(*) as n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.TaskID] = r.N
	}
	return counts, nil
}

func (s *Service) afterSync(ctx context.Context, kind string, p *models.AdoptionPlan, start time.Time) {
	metrics.PlanSyncs.WithLabelValues(kind).Inc()
	metrics.SyncDuration.Observe(time.Since(start).Seconds())
	_ = s.bus.Publish(ctx, bus.SubjectPlanSynced, SyncedEvent{
		PlanID:     p.ID,
		CustomerID: p.CustomerID,
		Kind:       kind,
		Progress:   p.ProgressPercentage,
		NeedsSync:  p.NeedsSync,
		SyncedAt:   time.Now().UTC(),
	})
}

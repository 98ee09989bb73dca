package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/metrics"
	"adoptd/internal/models"
	"adoptd/internal/plan"
	"adoptd/pkg/bus"
)

// Row is one imported spreadsheet row: a metric value keyed by task and
// attribute name.
type Row struct {
	TaskName      string
	AttributeName string
	Value         string
}

// TaskBreakdown reports per-task criteria results for the import summary.
type TaskBreakdown struct {
	TaskID               uuid.UUID `json:"task_id"`
	TaskName             string    `json:"task_name"`
	CriteriaMet          int       `json:"criteria_met"`
	CriteriaTotal        int       `json:"criteria_total"`
	CompletionPercentage float64   `json:"completion_percentage"`
	StatusChanged        bool      `json:"status_changed"`
}

// Summary is returned to the operator after an import. Row-level problems
// accumulate in Errors; they never abort the remaining rows.
type Summary struct {
	TasksProcessed     int             `json:"tasks_processed"`
	AttributesUpdated  int             `json:"attributes_updated"`
	CriteriaEvaluated  int             `json:"criteria_evaluated"`
	Errors             []string        `json:"errors"`
	Tasks              []TaskBreakdown `json:"tasks"`
}

// Importer persists telemetry values and drives criteria evaluation. Values
// commit progressively, row by row; a failed row is recorded and skipped.
type Importer struct {
	db    *gorm.DB
	plans *plan.Service
	bus   *bus.Bus
}

// NewImporter returns an Importer. The bus may be nil.
func NewImporter(db *gorm.DB, plans *plan.Service, b *bus.Bus) *Importer {
	return &Importer{db: db, plans: plans, bus: b}
}

type taskTarget struct {
	id             uuid.UUID
	templateTaskID uuid.UUID
	name           string
	status         models.TaskStatus
	solutionLevel  bool
}

// ImportPlan imports rows against a product adoption plan.
func (im *Importer) ImportPlan(ctx context.Context, planID uuid.UUID, rows []Row) (*Summary, error) {
	var p models.AdoptionPlan
	if err := im.db.WithContext(ctx).First(&p, "id = ?", planID).Error; err != nil {
		return nil, err
	}

	var tasks []models.CustomerTask
	if err := im.db.WithContext(ctx).Where("plan_id = ?", p.ID).Find(&tasks).Error; err != nil {
		return nil, err
	}

	targets := make([]taskTarget, 0, len(tasks))
	for _, t := range tasks {
		targets = append(targets, taskTarget{
			id:             t.ID,
			templateTaskID: t.TemplateTaskID,
			name:           t.Name,
			status:         t.Status,
		})
	}

	return im.importRows(ctx, targets, rows)
}

// ImportSolutionPlan imports rows against a solution plan: rows may address
// solution-level tasks or any member product plan's tasks.
func (im *Importer) ImportSolutionPlan(ctx context.Context, planID uuid.UUID, rows []Row) (*Summary, error) {
	var sp models.SolutionAdoptionPlan
	if err := im.db.WithContext(ctx).First(&sp, "id = ?", planID).Error; err != nil {
		return nil, err
	}

	var targets []taskTarget

	var solTasks []models.CustomerSolutionTask
	if err := im.db.WithContext(ctx).Where("plan_id = ?", sp.ID).Find(&solTasks).Error; err != nil {
		return nil, err
	}
	for _, t := range solTasks {
		targets = append(targets, taskTarget{
			id:             t.ID,
			templateTaskID: t.TemplateTaskID,
			name:           t.Name,
			status:         t.Status,
			solutionLevel:  true,
		})
	}

	var productPlans []models.AdoptionPlan
	if err := im.db.WithContext(ctx).Where("solution_plan_id = ?", sp.ID).Find(&productPlans).Error; err != nil {
		return nil, err
	}
	for _, pp := range productPlans {
		var tasks []models.CustomerTask
		if err := im.db.WithContext(ctx).Where("plan_id = ?", pp.ID).Find(&tasks).Error; err != nil {
			return nil, err
		}
		for _, t := range tasks {
			targets = append(targets, taskTarget{
				id:             t.ID,
				templateTaskID: t.TemplateTaskID,
				name:           t.Name,
				status:         t.Status,
			})
		}
	}

	return im.importRows(ctx, targets, rows)
}

func (im *Importer) importRows(ctx context.Context, targets []taskTarget, rows []Row) (*Summary, error) {
	summary := &Summary{Errors: []string{}}

	byName := make(map[string]*taskTarget, len(targets))
	templateIDs := make([]uuid.UUID, 0, len(targets))
	for i := range targets {
		key := normalizeName(targets[i].name)
		if _, dup := byName[key]; dup {
			// Same-named tasks across member plans cannot be told apart by
			// name; rows land on the first match only.
			summary.addError("ambiguous task name %q appears more than once in this plan", targets[i].name)
			continue
		}
		byName[key] = &targets[i]
		templateIDs = append(templateIDs, targets[i].templateTaskID)
	}

	attrsByTask := make(map[uuid.UUID][]models.TelemetryAttribute)
	if len(templateIDs) > 0 {
		var attrs []models.TelemetryAttribute
		if err := im.db.WithContext(ctx).Where("task_id IN ?", templateIDs).Find(&attrs).Error; err != nil {
			return nil, err
		}
		for _, a := range attrs {
			attrsByTask[a.TaskID] = append(attrsByTask[a.TaskID], a)
		}
	}

	// Latest value per (task, attribute) seen in this import; evaluation
	// falls back to stored history for attributes the file does not touch.
	latest := make(map[uuid.UUID]map[uuid.UUID]string)
	touched := make(map[uuid.UUID]*taskTarget)

	for i, row := range rows {
		target, ok := byName[normalizeName(row.TaskName)]
		if !ok {
			summary.addError("row %d: unknown task %q", i+1, row.TaskName)
			continue
		}

		attr, ok := findAttribute(attrsByTask[target.templateTaskID], row.AttributeName)
		if !ok {
			summary.addError("row %d: task %q has no attribute %q", i+1, row.TaskName, row.AttributeName)
			continue
		}

		if err := CheckValue(attr.DataType, row.Value); err != nil {
			summary.addError("row %d: attribute %q: %v", i+1, row.AttributeName, err)
			continue
		}

		value := models.TelemetryValue{
			ID:          uuid.New(),
			AttributeID: attr.ID,
			Value:       row.Value,
		}
		if target.solutionLevel {
			value.SolutionTaskID = &target.id
		} else {
			value.CustomerTaskID = &target.id
		}

		// Each row commits on its own; a later failure never rolls it back.
		if err := im.db.WithContext(ctx).Create(&value).Error; err != nil {
			summary.addError("row %d: store value: %v", i+1, err)
			continue
		}

		metrics.TelemetryRows.Inc()
		summary.AttributesUpdated++
		if latest[target.id] == nil {
			latest[target.id] = make(map[uuid.UUID]string)
		}
		latest[target.id][attr.ID] = row.Value
		touched[target.id] = target
	}

	for _, target := range targets {
		t := target
		if _, ok := touched[t.id]; !ok {
			continue
		}
		breakdown, err := im.evaluateTask(ctx, &t, attrsByTask[t.templateTaskID], latest[t.id], summary)
		if err != nil {
			return nil, err
		}
		summary.TasksProcessed++
		summary.Tasks = append(summary.Tasks, breakdown)
	}

	_ = im.bus.Publish(ctx, bus.SubjectTelemetryImported, summary)
	return summary, nil
}

// evaluateTask applies every criterion on the task using the latest value per
// attribute and flips the task to DONE (source TELEMETRY) when all required
// attributes are met. Statuses are never downgraded.
func (im *Importer) evaluateTask(ctx context.Context, target *taskTarget, attrs []models.TelemetryAttribute, imported map[uuid.UUID]string, summary *Summary) (TaskBreakdown, error) {
	breakdown := TaskBreakdown{TaskID: target.id, TaskName: target.name}

	requiredTotal := 0
	requiredMet := 0
	for _, attr := range attrs {
		raw, ok := imported[attr.ID]
		if !ok {
			raw, ok = im.latestStored(ctx, target, attr.ID)
		}

		met := false
		if attr.HasCriteria() {
			breakdown.CriteriaTotal++
			if ok {
				summary.CriteriaEvaluated++
				result, err := Evaluate(attr, raw)
				if err != nil {
					summary.addError("task %q attribute %q: %v", target.name, attr.Name, err)
				} else if result {
					met = true
					breakdown.CriteriaMet++
				}
			}
		} else {
			// No criterion: the attribute is satisfied once any value exists.
			met = ok
		}

		if attr.Required {
			requiredTotal++
			if met {
				requiredMet++
			}
		}
	}

	if breakdown.CriteriaTotal > 0 {
		breakdown.CompletionPercentage = float64(breakdown.CriteriaMet) / float64(breakdown.CriteriaTotal) * 100
	}

	if requiredTotal > 0 && requiredMet == requiredTotal && target.status != models.StatusDone {
		var err error
		if target.solutionLevel {
			_, _, err = im.plans.UpdateSolutionTaskStatus(ctx, target.id, models.StatusDone, nil, models.SourceTelemetry)
		} else {
			_, _, err = im.plans.UpdateTaskStatus(ctx, target.id, models.StatusDone, nil, models.SourceTelemetry)
		}
		if err != nil {
			return breakdown, err
		}
		breakdown.StatusChanged = true
	}

	return breakdown, nil
}

func (im *Importer) latestStored(ctx context.Context, target *taskTarget, attrID uuid.UUID) (string, bool) {
	column := "customer_task_id"
	if target.solutionLevel {
		column = "solution_task_id"
	}
	var value models.TelemetryValue
	err := im.db.WithContext(ctx).
		Where(column+" = ? AND attribute_id = ?", target.id, attrID).
		Order("created_at desc").
		First(&value).Error
	if err != nil {
		return "", false
	}
	return value.Value, true
}

func (s *Summary) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	metrics.ImportWarnings.Inc()
}

func findAttribute(attrs []models.TelemetryAttribute, name string) (models.TelemetryAttribute, bool) {
	needle := normalizeName(name)
	for _, a := range attrs {
		if normalizeName(a.Name) == needle {
			return a, true
		}
	}
	return models.TelemetryAttribute{}, false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

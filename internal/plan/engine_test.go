package plan_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"adoptd/internal/models"
	"adoptd/internal/plan"
	"adoptd/internal/testutil"
)

type fixture struct {
	db         *gorm.DB
	plans      *plan.Service
	customer   models.Customer
	product    models.Product
	assignment models.CustomerProduct
	tasks      []models.Task
}

// newFixture builds the license-scoping scenario: customer Acme assigned
// product SD-WAN at ADVANTAGE, with 10 template tasks (5 Essential, 3
// Advantage, 2 Signature). The 8 admitted tasks weigh 100 in total.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)

	f := &fixture{db: database, plans: plan.New(database, nil)}

	f.customer = models.Customer{ID: uuid.New(), Name: "Acme"}
	require.NoError(t, database.Create(&f.customer).Error)

	f.product = models.Product{ID: uuid.New(), Name: "SD-WAN"}
	require.NoError(t, database.Create(&f.product).Error)

	specs := []struct {
		name   string
		weight float64
		level  models.LicenseLevel
	}{
		{"Activate controllers", 10, models.LicenseEssential},
		{"Onboard sites", 10, models.LicenseEssential},
		{"Define policies", 20, models.LicenseEssential},
		{"Enable monitoring", 10, models.LicenseEssential},
		{"Baseline traffic", 20, models.LicenseEssential},
		{"Enable analytics", 10, models.LicenseAdvantage},
		{"Tune app routing", 10, models.LicenseAdvantage},
		{"Segment networks", 10, models.LicenseAdvantage},
		{"Enable vAnalytics AI", 40, models.LicenseSignature},
		{"Cloud onramp", 60, models.LicenseSignature},
	}
	for i, s := range specs {
		task := models.Task{
			ID:             uuid.New(),
			ProductID:      &f.product.ID,
			Name:           s.name,
			Weight:         s.weight,
			SequenceNumber: i + 1,
			LicenseLevel:   s.level,
		}
		require.NoError(t, database.Create(&task).Error)
		f.tasks = append(f.tasks, task)
	}

	f.assignment = models.CustomerProduct{
		ID:           uuid.New(),
		CustomerID:   f.customer.ID,
		ProductID:    f.product.ID,
		LicenseLevel: models.LicenseAdvantage,
	}
	require.NoError(t, database.Create(&f.assignment).Error)
	return f
}

func (f *fixture) planTasks(t *testing.T, planID uuid.UUID) []models.CustomerTask {
	t.Helper()
	var tasks []models.CustomerTask
	require.NoError(t, f.db.Where("plan_id = ?", planID).Order("sequence_number").Find(&tasks).Error)
	return tasks
}

func TestCreatePlanAppliesLicenseScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	tasks := f.planTasks(t, p.ID)
	require.Len(t, tasks, 8)
	for _, task := range tasks {
		assert.NotEqual(t, models.LicenseSignature, task.LicenseLevel)
		assert.Equal(t, models.StatusNotStarted, task.Status)
	}
	assert.Equal(t, 8, p.TotalTasks)
	assert.Equal(t, 100.0, p.TotalWeight)
	assert.Equal(t, 0.0, p.ProgressPercentage)
	assert.False(t, p.NeedsSync)
	require.NotNil(t, p.LastSyncedAt)
}

func TestCreatePlanAppliesOutcomeScope(t *testing.T) {
	database := testutil.NewTestDB(t)
	plans := plan.New(database, nil)
	ctx := context.Background()

	customer := models.Customer{ID: uuid.New(), Name: "Hooli"}
	require.NoError(t, database.Create(&customer).Error)
	product := models.Product{ID: uuid.New(), Name: "Observability"}
	require.NoError(t, database.Create(&product).Error)

	visibility := models.Outcome{ID: uuid.New(), ProductID: &product.ID, Name: "Visibility"}
	automation := models.Outcome{ID: uuid.New(), ProductID: &product.ID, Name: "Automation"}
	require.NoError(t, database.Create(&visibility).Error)
	require.NoError(t, database.Create(&automation).Error)

	specs := []struct {
		name     string
		weight   float64
		outcomes []models.Outcome
	}{
		{"Device onboarding", 10, []models.Outcome{visibility}},
		{"Policy automation", 20, []models.Outcome{automation}},
		{"Insights dashboards", 30, []models.Outcome{visibility, automation}},
		{"Baseline health", 40, nil},
	}
	for i, s := range specs {
		require.NoError(t, database.Create(&models.Task{
			ID:             uuid.New(),
			ProductID:      &product.ID,
			Name:           s.name,
			Weight:         s.weight,
			SequenceNumber: i + 1,
			Outcomes:       s.outcomes,
		}).Error)
	}

	assignment := models.CustomerProduct{
		ID:               uuid.New(),
		CustomerID:       customer.ID,
		ProductID:        product.ID,
		LicenseLevel:     models.LicenseSignature,
		SelectedOutcomes: []models.Outcome{visibility},
	}
	require.NoError(t, database.Create(&assignment).Error)

	// Tasks tagged only with unselected outcomes drop out; tasks with any
	// selected tag or no tags at all stay in.
	p, err := plans.CreatePlan(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalTasks)
	assert.Equal(t, 80.0, p.TotalWeight)

	var tasks []models.CustomerTask
	require.NoError(t, database.Where("plan_id = ?", p.ID).Order("sequence_number").Find(&tasks).Error)
	require.Len(t, tasks, 3)
	names := []string{tasks[0].Name, tasks[1].Name, tasks[2].Name}
	assert.Equal(t, []string{"Device onboarding", "Insights dashboards", "Baseline health"}, names)

	// Widening the subset admits the remaining task on the next sync.
	require.NoError(t, database.Model(&assignment).Association("SelectedOutcomes").Append(&automation))
	p2, err := plans.SyncPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p2.TotalTasks)
	assert.Equal(t, 100.0, p2.TotalWeight)
}

func TestScenarioHalfwayProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	// Mark the four tasks weighing 10, 10, 20, 10 as DONE.
	var updated *models.AdoptionPlan
	for _, name := range []string{"Activate controllers", "Onboard sites", "Define policies", "Enable monitoring"} {
		var task models.CustomerTask
		require.NoError(t, f.db.First(&task, "plan_id = ? AND name = ?", p.ID, name).Error)
		_, updated, err = f.plans.UpdateTaskStatus(ctx, task.ID, models.StatusDone, nil, models.SourceManual)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, updated.CompletedTasks)
	assert.Equal(t, 50.0, updated.CompletedWeight)
	assert.Equal(t, 50.0, updated.ProgressPercentage)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)
	before := f.planTasks(t, p.ID)

	p2, err := f.plans.SyncPlan(ctx, p.ID)
	require.NoError(t, err)
	after := f.planTasks(t, p.ID)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].SequenceNumber, after[i].SequenceNumber)
	}
	assert.Equal(t, p.TotalTasks, p2.TotalTasks)
	assert.Equal(t, p.TotalWeight, p2.TotalWeight)
	assert.Equal(t, p.ProgressPercentage, p2.ProgressPercentage)
}

func TestSyncPreservesProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	var task models.CustomerTask
	require.NoError(t, f.db.First(&task, "plan_id = ? AND name = ?", p.ID, "Onboard sites").Error)
	notes := "rollout complete for EU sites"
	_, _, err = f.plans.UpdateTaskStatus(ctx, task.ID, models.StatusDone, &notes, models.SourceManual)
	require.NoError(t, err)

	// Template edit: rename and reweight the task, then sync.
	require.NoError(t, f.db.Model(&models.Task{}).Where("id = ?", task.TemplateTaskID).
		Updates(map[string]any{"name": "Onboard branch sites", "weight": 15.0}).Error)

	_, err = f.plans.SyncPlan(ctx, p.ID)
	require.NoError(t, err)

	var synced models.CustomerTask
	require.NoError(t, f.db.First(&synced, "id = ?", task.ID).Error)
	assert.Equal(t, "Onboard branch sites", synced.Name)
	assert.Equal(t, 15.0, synced.Weight)
	assert.Equal(t, models.StatusDone, synced.Status)
	assert.Equal(t, notes, synced.Notes)
	assert.False(t, synced.Stale)
}

func TestSyncAdmitsNewlyAddedTemplateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	added := models.Task{
		ID:             uuid.New(),
		ProductID:      &f.product.ID,
		Name:           "Enable SSE integration",
		Weight:         25,
		SequenceNumber: 11,
		LicenseLevel:   models.LicenseAdvantage,
	}
	require.NoError(t, f.db.Create(&added).Error)

	p2, err := f.plans.SyncPlan(ctx, p.ID)
	require.NoError(t, err)

	tasks := f.planTasks(t, p.ID)
	require.Len(t, tasks, 9)
	assert.Equal(t, 9, p2.TotalTasks)
	assert.Equal(t, 125.0, p2.TotalWeight)
}

func TestSyncDeletesUntouchedRemovedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	// Remove a template task nobody touched.
	require.NoError(t, f.db.Delete(&models.Task{}, "id = ?", f.tasks[7].ID).Error)

	p2, err := f.plans.SyncPlan(ctx, p.ID)
	require.NoError(t, err)

	tasks := f.planTasks(t, p.ID)
	require.Len(t, tasks, 7)
	assert.False(t, p2.NeedsSync)
}

func TestSyncKeepsRemovedTaskWithProgressAsStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	var task models.CustomerTask
	require.NoError(t, f.db.First(&task, "plan_id = ? AND name = ?", p.ID, "Segment networks").Error)
	_, _, err = f.plans.UpdateTaskStatus(ctx, task.ID, models.StatusDone, nil, models.SourceManual)
	require.NoError(t, err)

	require.NoError(t, f.db.Delete(&models.Task{}, "id = ?", task.TemplateTaskID).Error)

	p2, err := f.plans.SyncPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p2.NeedsSync)

	var kept models.CustomerTask
	require.NoError(t, f.db.First(&kept, "id = ?", task.ID).Error)
	assert.True(t, kept.Stale)
	assert.Equal(t, models.StatusDone, kept.Status)

	// Stale tasks do not count toward aggregates.
	assert.Equal(t, 7, p2.TotalTasks)
	assert.Equal(t, 0, p2.CompletedTasks)

	// Confirmed removal deletes the row and clears the flag.
	p3, err := f.plans.RemoveStaleTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, p3.NeedsSync)

	err = f.db.First(&kept, "id = ?", task.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateTaskStatusRecomputesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	var task models.CustomerTask
	require.NoError(t, f.db.First(&task, "plan_id = ? AND name = ?", p.ID, "Baseline traffic").Error)

	updated, planAfter, err := f.plans.UpdateTaskStatus(ctx, task.ID, models.StatusNotApplicable, nil, models.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotApplicable, updated.Status)

	// The 20-weight task leaves both numerator and denominator.
	assert.Equal(t, 7, planAfter.TotalTasks)
	assert.Equal(t, 80.0, planAfter.TotalWeight)

	var stored models.AdoptionPlan
	require.NoError(t, f.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, planAfter.TotalTasks, stored.TotalTasks)
	assert.Equal(t, planAfter.ProgressPercentage, stored.ProgressPercentage)
}

func TestCreatePlanUnknownAssignment(t *testing.T) {
	f := newFixture(t)

	_, err := f.plans.CreatePlan(context.Background(), uuid.New())
	assert.ErrorIs(t, err, plan.ErrAssignmentNotFound)
}

func TestSyncPlanTemplateDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.plans.CreatePlan(ctx, f.assignment.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Delete(&models.Product{}, "id = ?", f.product.ID).Error)

	_, err = f.plans.SyncPlan(ctx, p.ID)
	assert.ErrorIs(t, err, plan.ErrTemplateDeleted)
}

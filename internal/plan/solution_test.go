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

func TestSolutionPlanRollsUpMemberPlans(t *testing.T) {
	database := testutil.NewTestDB(t)
	plans := plan.New(database, nil)
	ctx := context.Background()

	customer := models.Customer{ID: uuid.New(), Name: "Globex"}
	require.NoError(t, database.Create(&customer).Error)

	solution := models.Solution{ID: uuid.New(), Name: "Secure Branch"}
	require.NoError(t, database.Create(&solution).Error)

	// Two member products with two tasks each, plus one solution-level task.
	var members []models.Product
	for i, name := range []string{"SD-WAN", "Firewall"} {
		product := models.Product{ID: uuid.New(), Name: name}
		require.NoError(t, database.Create(&product).Error)
		members = append(members, product)
		require.NoError(t, database.Create(&models.SolutionProduct{
			ID:         uuid.New(),
			SolutionID: solution.ID,
			ProductID:  product.ID,
			Position:   i,
		}).Error)

		for seq := 1; seq <= 2; seq++ {
			require.NoError(t, database.Create(&models.Task{
				ID:             uuid.New(),
				ProductID:      &product.ID,
				Name:           name + " task",
				Weight:         25,
				SequenceNumber: seq,
			}).Error)
		}
	}
	require.NoError(t, database.Create(&models.Task{
		ID:             uuid.New(),
		SolutionID:     &solution.ID,
		Name:           "Validate end to end",
		Weight:         100,
		SequenceNumber: 1,
	}).Error)

	assignment := models.CustomerSolution{
		ID:           uuid.New(),
		CustomerID:   customer.ID,
		SolutionID:   solution.ID,
		LicenseLevel: models.LicenseSignature,
	}
	require.NoError(t, database.Create(&assignment).Error)

	sp, err := plans.CreateSolutionPlan(ctx, assignment.ID)
	require.NoError(t, err)

	// 2 products x 2 tasks + 1 solution task.
	assert.Equal(t, 5, sp.TotalTasks)
	assert.Equal(t, 200.0, sp.TotalWeight)
	assert.Equal(t, 0.0, sp.ProgressPercentage)

	var productPlans []models.AdoptionPlan
	require.NoError(t, database.Where("solution_plan_id = ?", sp.ID).Find(&productPlans).Error)
	require.Len(t, productPlans, 2)
	for _, p := range productPlans {
		assert.Nil(t, p.CustomerProductID)
		assert.Equal(t, 2, p.TotalTasks)
	}

	// Complete the solution-level task: 100 of 200 weight.
	var solTask models.CustomerSolutionTask
	require.NoError(t, database.First(&solTask, "plan_id = ?", sp.ID).Error)
	_, rolled, err := plans.UpdateSolutionTaskStatus(ctx, solTask.ID, models.StatusDone, nil, models.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, 1, rolled.CompletedTasks)
	assert.Equal(t, 50.0, rolled.ProgressPercentage)

	// Complete one member task: 125 of 200.
	var memberTask models.CustomerTask
	require.NoError(t, database.First(&memberTask, "plan_id = ?", productPlans[0].ID).Error)
	_, _, err = plans.UpdateTaskStatus(ctx, memberTask.ID, models.StatusDone, nil, models.SourceManual)
	require.NoError(t, err)

	var stored models.SolutionAdoptionPlan
	require.NoError(t, database.First(&stored, "id = ?", sp.ID).Error)
	assert.Equal(t, 2, stored.CompletedTasks)
	assert.Equal(t, 62.5, stored.ProgressPercentage)
}

func TestSolutionSyncPicksUpNewMember(t *testing.T) {
	database := testutil.NewTestDB(t)
	plans := plan.New(database, nil)
	ctx := context.Background()

	customer := models.Customer{ID: uuid.New(), Name: "Initech"}
	require.NoError(t, database.Create(&customer).Error)
	solution := models.Solution{ID: uuid.New(), Name: "Observability"}
	require.NoError(t, database.Create(&solution).Error)

	assignment := models.CustomerSolution{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		SolutionID: solution.ID,
	}
	require.NoError(t, database.Create(&assignment).Error)

	sp, err := plans.CreateSolutionPlan(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sp.TotalTasks)

	product := models.Product{ID: uuid.New(), Name: "Logging"}
	require.NoError(t, database.Create(&product).Error)
	require.NoError(t, database.Create(&models.Task{
		ID:        uuid.New(),
		ProductID: &product.ID,
		Name:      "Ship logs",
		Weight:    10,
	}).Error)
	require.NoError(t, database.Create(&models.SolutionProduct{
		ID:         uuid.New(),
		SolutionID: solution.ID,
		ProductID:  product.ID,
	}).Error)

	sp2, err := plans.SyncSolutionPlan(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sp2.TotalTasks)
	assert.Equal(t, 10.0, sp2.TotalWeight)
}

// twoMemberSolution builds a solution with two single-task member products
// and returns the assignment plus the member products in position order.
func twoMemberSolution(t *testing.T, database *gorm.DB) (models.CustomerSolution, []models.Product) {
	t.Helper()

	customer := models.Customer{ID: uuid.New(), Name: "Umbrella"}
	require.NoError(t, database.Create(&customer).Error)
	solution := models.Solution{ID: uuid.New(), Name: "Branch Refresh"}
	require.NoError(t, database.Create(&solution).Error)

	var products []models.Product
	for i, spec := range []struct {
		name   string
		weight float64
	}{{"Routing", 10}, {"Wireless", 20}} {
		product := models.Product{ID: uuid.New(), Name: spec.name}
		require.NoError(t, database.Create(&product).Error)
		products = append(products, product)
		require.NoError(t, database.Create(&models.SolutionProduct{
			ID:         uuid.New(),
			SolutionID: solution.ID,
			ProductID:  product.ID,
			Position:   i,
		}).Error)
		require.NoError(t, database.Create(&models.Task{
			ID:             uuid.New(),
			ProductID:      &product.ID,
			Name:           "Deploy " + spec.name,
			Weight:         spec.weight,
			SequenceNumber: 1,
		}).Error)
	}

	assignment := models.CustomerSolution{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		SolutionID: solution.ID,
	}
	require.NoError(t, database.Create(&assignment).Error)
	return assignment, products
}

func TestSolutionSyncDeletesRemovedMemberPlan(t *testing.T) {
	database := testutil.NewTestDB(t)
	plans := plan.New(database, nil)
	ctx := context.Background()

	assignment, products := twoMemberSolution(t, database)

	sp, err := plans.CreateSolutionPlan(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sp.TotalTasks)
	assert.Equal(t, 30.0, sp.TotalWeight)

	// Drop the second member. Its plan carries no progress, so the sync
	// removes the plan and its tasks outright.
	require.NoError(t, database.
		Where("solution_id = ? AND product_id = ?", assignment.SolutionID, products[1].ID).
		Delete(&models.SolutionProduct{}).Error)

	sp2, err := plans.SyncSolutionPlan(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sp2.TotalTasks)
	assert.Equal(t, 10.0, sp2.TotalWeight)
	assert.False(t, sp2.NeedsSync)

	var remaining []models.AdoptionPlan
	require.NoError(t, database.Where("solution_plan_id = ?", sp.ID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, products[0].ID, remaining[0].ProductID)

	var count int64
	require.NoError(t, database.Model(&models.CustomerTask{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSolutionSyncKeepsRemovedMemberPlanWithProgress(t *testing.T) {
	database := testutil.NewTestDB(t)
	plans := plan.New(database, nil)
	ctx := context.Background()

	assignment, products := twoMemberSolution(t, database)

	sp, err := plans.CreateSolutionPlan(ctx, assignment.ID)
	require.NoError(t, err)

	var removedPlan models.AdoptionPlan
	require.NoError(t, database.First(&removedPlan,
		"solution_plan_id = ? AND product_id = ?", sp.ID, products[1].ID).Error)
	var doneTask models.CustomerTask
	require.NoError(t, database.First(&doneTask, "plan_id = ?", removedPlan.ID).Error)
	_, _, err = plans.UpdateTaskStatus(ctx, doneTask.ID, models.StatusDone, nil, models.SourceManual)
	require.NoError(t, err)

	require.NoError(t, database.
		Where("solution_id = ? AND product_id = ?", assignment.SolutionID, products[1].ID).
		Delete(&models.SolutionProduct{}).Error)

	// The completed task blocks deletion: the plan survives with its tasks
	// stale and the flag set for operator confirmation.
	sp2, err := plans.SyncSolutionPlan(ctx, sp.ID)
	require.NoError(t, err)
	assert.True(t, sp2.NeedsSync)
	assert.Equal(t, 1, sp2.TotalTasks)
	assert.Equal(t, 10.0, sp2.TotalWeight)
	assert.Equal(t, 0, sp2.CompletedTasks)

	var kept models.AdoptionPlan
	require.NoError(t, database.First(&kept, "id = ?", removedPlan.ID).Error)
	assert.True(t, kept.NeedsSync)
	assert.Equal(t, 0, kept.TotalTasks)

	var staleTask models.CustomerTask
	require.NoError(t, database.First(&staleTask, "id = ?", doneTask.ID).Error)
	assert.True(t, staleTask.Stale)
	assert.Equal(t, models.StatusDone, staleTask.Status)
}

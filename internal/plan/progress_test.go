package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"adoptd/internal/models"
)

func task(status models.TaskStatus, weight float64) models.CustomerTask {
	return models.CustomerTask{Status: status, Weight: weight}
}

func TestRecomputeWeighted(t *testing.T) {
	tasks := []models.CustomerTask{
		task(models.StatusDone, 10),
		task(models.StatusDone, 10),
		task(models.StatusDone, 20),
		task(models.StatusDone, 10),
		task(models.StatusNotStarted, 20),
		task(models.StatusInProgress, 10),
		task(models.StatusNotStarted, 10),
		task(models.StatusNotStarted, 10),
	}

	agg := Recompute(tasks)
	assert.Equal(t, 8, agg.TotalTasks)
	assert.Equal(t, 4, agg.CompletedTasks)
	assert.Equal(t, 100.0, agg.TotalWeight)
	assert.Equal(t, 50.0, agg.CompletedWeight)
	assert.Equal(t, 50.0, agg.ProgressPercentage)
}

func TestRecomputeCountBasedWhenUnweighted(t *testing.T) {
	tasks := []models.CustomerTask{
		task(models.StatusDone, 0),
		task(models.StatusNotStarted, 0),
		task(models.StatusNotStarted, 0),
	}

	agg := Recompute(tasks)
	assert.Equal(t, 33.33, agg.ProgressPercentage)
}

func TestRecomputeExcludesNotApplicable(t *testing.T) {
	tasks := []models.CustomerTask{
		task(models.StatusDone, 50),
		task(models.StatusNotApplicable, 50),
		task(models.StatusNoLongerUsing, 25),
		task(models.StatusNotStarted, 50),
	}

	agg := Recompute(tasks)
	assert.Equal(t, 2, agg.TotalTasks)
	assert.Equal(t, 100.0, agg.TotalWeight)
	assert.Equal(t, 50.0, agg.ProgressPercentage)
}

func TestRecomputeExcludesStale(t *testing.T) {
	stale := task(models.StatusDone, 50)
	stale.Stale = true
	tasks := []models.CustomerTask{
		stale,
		task(models.StatusDone, 25),
		task(models.StatusNotStarted, 75),
	}

	agg := Recompute(tasks)
	assert.Equal(t, 2, agg.TotalTasks)
	assert.Equal(t, 25.0, agg.ProgressPercentage)
}

func TestRecomputeEmptyPlanIsZero(t *testing.T) {
	agg := Recompute(nil)
	assert.Equal(t, 0, agg.TotalTasks)
	assert.Equal(t, 0.0, agg.ProgressPercentage)
}

func TestCombineRederivesPercentage(t *testing.T) {
	a := Aggregates{TotalTasks: 2, CompletedTasks: 2, TotalWeight: 20, CompletedWeight: 20, ProgressPercentage: 100}
	b := Aggregates{TotalTasks: 2, CompletedTasks: 0, TotalWeight: 80, CompletedWeight: 0, ProgressPercentage: 0}

	got := Combine(a, b)
	assert.Equal(t, 4, got.TotalTasks)
	assert.Equal(t, 2, got.CompletedTasks)
	// Weighted, not an average of the two percentages.
	assert.Equal(t, 20.0, got.ProgressPercentage)
}

package plan

import (
	"math"

	"adoptd/internal/models"
)

// Aggregates holds the denormalized counters stored on a plan row.
type Aggregates struct {
	TotalTasks         int
	CompletedTasks     int
	TotalWeight        float64
	CompletedWeight    float64
	ProgressPercentage float64
}

type taskFacts struct {
	weight float64
	status models.TaskStatus
	stale  bool
}

// Recompute derives plan counters from a product plan's task rows.
// NOT_APPLICABLE and NO_LONGER_USING tasks are excluded from both numerator
// and denominator, as are stale rows awaiting removal confirmation.
func Recompute(tasks []models.CustomerTask) Aggregates {
	facts := make([]taskFacts, 0, len(tasks))
	for _, t := range tasks {
		facts = append(facts, taskFacts{weight: t.Weight, status: t.Status, stale: t.Stale})
	}
	return aggregate(facts)
}

// RecomputeSolution derives the solution-level-only task counters.
func RecomputeSolution(tasks []models.CustomerSolutionTask) Aggregates {
	facts := make([]taskFacts, 0, len(tasks))
	for _, t := range tasks {
		facts = append(facts, taskFacts{weight: t.Weight, status: t.Status, stale: t.Stale})
	}
	return aggregate(facts)
}

func aggregate(facts []taskFacts) Aggregates {
	var agg Aggregates
	for _, f := range facts {
		if f.stale || !f.status.Applicable() {
			continue
		}
		agg.TotalTasks++
		agg.TotalWeight += f.weight
		if f.status.Completed() {
			agg.CompletedTasks++
			agg.CompletedWeight += f.weight
		}
	}
	agg.ProgressPercentage = percentage(agg)
	return agg
}

// Combine sums plan counters for a solution rollup and re-derives the
// percentage from the summed weights rather than averaging percentages.
func Combine(parts ...Aggregates) Aggregates {
	var agg Aggregates
	for _, p := range parts {
		agg.TotalTasks += p.TotalTasks
		agg.CompletedTasks += p.CompletedTasks
		agg.TotalWeight += p.TotalWeight
		agg.CompletedWeight += p.CompletedWeight
	}
	agg.ProgressPercentage = percentage(agg)
	return agg
}

func percentage(agg Aggregates) float64 {
	switch {
	case agg.TotalWeight > 0:
		return round2(agg.CompletedWeight / agg.TotalWeight * 100)
	case agg.TotalTasks > 0:
		return round2(float64(agg.CompletedTasks) / float64(agg.TotalTasks) * 100)
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

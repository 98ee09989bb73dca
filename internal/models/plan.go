package models

import (
	"time"

	"github.com/google/uuid"
)

// AdoptionPlan materializes a customer-product assignment into mutable task
// rows with aggregate counters. A plan created for a member product of a
// solution assignment carries SolutionPlanID instead of CustomerProductID.
type AdoptionPlan struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerProductID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"customer_product_id,omitempty"`
	SolutionPlanID    *uuid.UUID `gorm:"type:uuid;index" json:"solution_plan_id,omitempty"`
	CustomerID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"customer_id"`
	ProductID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"product_id"`

	TotalTasks         int     `gorm:"not null;default:0" json:"total_tasks"`
	CompletedTasks     int     `gorm:"not null;default:0" json:"completed_tasks"`
	TotalWeight        float64 `gorm:"not null;default:0" json:"total_weight"`
	CompletedWeight    float64 `gorm:"not null;default:0" json:"completed_weight"`
	ProgressPercentage float64 `gorm:"not null;default:0" json:"progress_percentage"`

	NeedsSync    bool       `gorm:"not null;default:false" json:"needs_sync"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Tasks []CustomerTask `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// CustomerTask is the instantiated, mutable copy of a template task inside an
// adoption plan. Sequence numbers are unique within a plan; uniqueness is
// maintained by the sync renumbering pass.
type CustomerTask struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID         uuid.UUID    `gorm:"type:uuid;index:idx_plan_seq,priority:1;not null" json:"plan_id"`
	TemplateTaskID uuid.UUID    `gorm:"type:uuid;index;not null" json:"template_task_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Description    string       `gorm:"type:text" json:"description"`
	Weight         float64      `gorm:"not null;default:0" json:"weight"`
	SequenceNumber int          `gorm:"index:idx_plan_seq,priority:2;not null;default:0" json:"sequence_number"`
	LicenseLevel   LicenseLevel `gorm:"type:text;not null;default:ESSENTIAL" json:"license_level"`

	Status          TaskStatus   `gorm:"type:text;not null;default:NOT_STARTED" json:"status"`
	Notes           string       `gorm:"type:text" json:"notes"`
	StatusSource    StatusSource `gorm:"type:text;not null;default:MANUAL" json:"status_source"`
	StatusUpdatedAt *time.Time   `json:"status_updated_at,omitempty"`

	// Stale marks a task the template no longer produces but which carries
	// recorded progress; it stays out of aggregates until an operator confirms
	// removal.
	Stale bool `gorm:"not null;default:false" json:"stale"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	TelemetryValues []TelemetryValue `gorm:"foreignKey:CustomerTaskID;constraint:OnDelete:CASCADE" json:"telemetry_values,omitempty"`
}

// SolutionAdoptionPlan rolls up a customer-solution assignment: counters are
// the sum of each member product plan's counters plus the solution-level task
// counters.
type SolutionAdoptionPlan struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerSolutionID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"customer_solution_id"`
	CustomerID         uuid.UUID `gorm:"type:uuid;index;not null" json:"customer_id"`
	SolutionID         uuid.UUID `gorm:"type:uuid;index;not null" json:"solution_id"`

	TotalTasks         int     `gorm:"not null;default:0" json:"total_tasks"`
	CompletedTasks     int     `gorm:"not null;default:0" json:"completed_tasks"`
	TotalWeight        float64 `gorm:"not null;default:0" json:"total_weight"`
	CompletedWeight    float64 `gorm:"not null;default:0" json:"completed_weight"`
	ProgressPercentage float64 `gorm:"not null;default:0" json:"progress_percentage"`

	NeedsSync    bool       `gorm:"not null;default:false" json:"needs_sync"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Tasks        []CustomerSolutionTask `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	ProductPlans []AdoptionPlan         `gorm:"foreignKey:SolutionPlanID;constraint:OnDelete:CASCADE" json:"product_plans,omitempty"`
}

// CustomerSolutionTask instantiates a solution-level template task.
type CustomerSolutionTask struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID         uuid.UUID    `gorm:"type:uuid;index:idx_splan_seq,priority:1;not null" json:"plan_id"`
	TemplateTaskID uuid.UUID    `gorm:"type:uuid;index;not null" json:"template_task_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Description    string       `gorm:"type:text" json:"description"`
	Weight         float64      `gorm:"not null;default:0" json:"weight"`
	SequenceNumber int          `gorm:"index:idx_splan_seq,priority:2;not null;default:0" json:"sequence_number"`
	LicenseLevel   LicenseLevel `gorm:"type:text;not null;default:ESSENTIAL" json:"license_level"`

	Status          TaskStatus   `gorm:"type:text;not null;default:NOT_STARTED" json:"status"`
	Notes           string       `gorm:"type:text" json:"notes"`
	StatusSource    StatusSource `gorm:"type:text;not null;default:MANUAL" json:"status_source"`
	StatusUpdatedAt *time.Time   `json:"status_updated_at,omitempty"`
	Stale           bool         `gorm:"not null;default:false" json:"stale"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	TelemetryValues []TelemetryValue `gorm:"foreignKey:SolutionTaskID;constraint:OnDelete:CASCADE" json:"telemetry_values,omitempty"`
}

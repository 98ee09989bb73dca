package models

import (
	"time"

	"github.com/google/uuid"
)

// TelemetryAttribute is a named metric attached to a template task, with an
// optional success criterion (operator + expected value). Required attributes
// gate telemetry-driven completion of the task.
type TelemetryAttribute struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID        uuid.UUID     `gorm:"type:uuid;index;not null" json:"task_id"`
	Name          string        `gorm:"type:text;not null" json:"name"`
	Description   string        `gorm:"type:text" json:"description"`
	DataType      AttributeType `gorm:"type:text;not null;default:STRING" json:"data_type"`
	Required      bool          `gorm:"not null;default:false" json:"required"`
	Operator      string        `gorm:"type:text" json:"operator,omitempty"`
	ExpectedValue string        `gorm:"type:text" json:"expected_value,omitempty"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasCriteria reports whether the attribute carries a success criterion.
func (a TelemetryAttribute) HasCriteria() bool {
	return a.Operator != ""
}

// TelemetryValue is one imported metric value for an attribute on a plan task.
// The latest row per attribute wins during evaluation; whether the criterion
// is met is derived, never stored authoritatively.
type TelemetryValue struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AttributeID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"attribute_id"`
	CustomerTaskID *uuid.UUID `gorm:"type:uuid;index" json:"customer_task_id,omitempty"`
	SolutionTaskID *uuid.UUID `gorm:"type:uuid;index" json:"solution_task_id,omitempty"`
	Value          string     `gorm:"type:text;not null" json:"value"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

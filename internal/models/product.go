package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a template defining the adoption tasks sold with a product.
type Product struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Tasks      []Task             `gorm:"constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Outcomes   []Outcome          `gorm:"constraint:OnDelete:CASCADE" json:"outcomes,omitempty"`
	Releases   []Release          `gorm:"constraint:OnDelete:CASCADE" json:"releases,omitempty"`
	Attributes []ProductAttribute `gorm:"constraint:OnDelete:CASCADE" json:"attributes,omitempty"`
}

// Outcome tags template tasks with a business outcome; assignments may scope
// their plan to a subset of outcomes.
type Outcome struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   *uuid.UUID `gorm:"type:uuid;index" json:"product_id,omitempty"`
	SolutionID  *uuid.UUID `gorm:"type:uuid;index" json:"solution_id,omitempty"`
	Name        string     `gorm:"type:text;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Release tags template tasks with a product release train.
type Release struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  *uuid.UUID `gorm:"type:uuid;index" json:"product_id,omitempty"`
	SolutionID *uuid.UUID `gorm:"type:uuid;index" json:"solution_id,omitempty"`
	Name       string     `gorm:"type:text;not null" json:"name"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductAttribute is a free-form key/value carried on the product template
// and round-tripped through the Custom Attributes workbook sheet.
type ProductAttribute struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;index;not null" json:"product_id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Task is a template task. It belongs to either a product or a solution
// (solution-level tasks have no member product).
type Task struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID      *uuid.UUID     `gorm:"type:uuid;index" json:"product_id,omitempty"`
	SolutionID     *uuid.UUID     `gorm:"type:uuid;index" json:"solution_id,omitempty"`
	Name           string         `gorm:"type:text;not null" json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	Weight         float64        `gorm:"not null;default:0" json:"weight"`
	SequenceNumber int            `gorm:"not null;default:0" json:"sequence_number"`
	LicenseLevel   LicenseLevel   `gorm:"type:text;not null;default:ESSENTIAL" json:"license_level"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Outcomes            []Outcome            `gorm:"many2many:task_outcomes" json:"outcomes,omitempty"`
	Releases            []Release            `gorm:"many2many:task_releases" json:"releases,omitempty"`
	TelemetryAttributes []TelemetryAttribute `gorm:"constraint:OnDelete:CASCADE" json:"telemetry_attributes,omitempty"`
}

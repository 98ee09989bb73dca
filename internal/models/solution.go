package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Solution is a template bundling an ordered list of member products plus
// solution-level tasks of its own.
type Solution struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Members  []SolutionProduct `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Tasks    []Task            `gorm:"constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Outcomes []Outcome         `gorm:"constraint:OnDelete:CASCADE" json:"outcomes,omitempty"`
	Releases []Release         `gorm:"constraint:OnDelete:CASCADE" json:"releases,omitempty"`
}

// SolutionProduct orders a member product inside a solution.
type SolutionProduct struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SolutionID uuid.UUID `gorm:"type:uuid;index;not null" json:"solution_id"`
	ProductID  uuid.UUID `gorm:"type:uuid;index;not null" json:"product_id"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	Product Product `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"product,omitempty"`
}

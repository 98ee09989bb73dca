package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a named account owning product and solution assignments.
type Customer struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Notes     string         `gorm:"type:text" json:"notes"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Products  []CustomerProduct  `gorm:"constraint:OnDelete:CASCADE" json:"products,omitempty"`
	Solutions []CustomerSolution `gorm:"constraint:OnDelete:CASCADE" json:"solutions,omitempty"`
}

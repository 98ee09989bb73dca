package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerProduct assigns a product template to a customer at a chosen
// license level, optionally scoped to a subset of outcomes/releases. An empty
// subset means the assignment is unrestricted.
type CustomerProduct struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   uuid.UUID    `gorm:"type:uuid;index:idx_customer_product,unique,priority:1;not null" json:"customer_id"`
	ProductID    uuid.UUID    `gorm:"type:uuid;index:idx_customer_product,unique,priority:2;not null" json:"product_id"`
	LicenseLevel LicenseLevel `gorm:"type:text;not null;default:ESSENTIAL" json:"license_level"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Product          Product   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"product,omitempty"`
	SelectedOutcomes []Outcome `gorm:"many2many:customer_product_outcomes" json:"selected_outcomes,omitempty"`
	SelectedReleases []Release `gorm:"many2many:customer_product_releases" json:"selected_releases,omitempty"`
}

// CustomerSolution assigns a solution template to a customer.
type CustomerSolution struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   uuid.UUID    `gorm:"type:uuid;index:idx_customer_solution,unique,priority:1;not null" json:"customer_id"`
	SolutionID   uuid.UUID    `gorm:"type:uuid;index:idx_customer_solution,unique,priority:2;not null" json:"solution_id"`
	LicenseLevel LicenseLevel `gorm:"type:text;not null;default:ESSENTIAL" json:"license_level"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Solution         Solution  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"solution,omitempty"`
	SelectedOutcomes []Outcome `gorm:"many2many:customer_solution_outcomes" json:"selected_outcomes,omitempty"`
	SelectedReleases []Release `gorm:"many2many:customer_solution_releases" json:"selected_releases,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog captures notable mutations for later review.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	ActorEmail string         `gorm:"type:text" json:"actor_email"`
	Action     string         `gorm:"type:text;not null" json:"action"`
	TargetType string         `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string        `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

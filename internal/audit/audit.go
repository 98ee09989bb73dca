// Package audit records mutations to the audit log table. Recording is best
// effort: a failed write is logged but never fails the mutation itself.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"adoptd/internal/auth"
	"adoptd/internal/models"
)

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one audit entry attributed to the identity on ctx. metadata
// may be nil. A nil Recorder is valid and records nothing.
func (r *Recorder) Record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if r == nil {
		return
	}

	entry := models.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		TargetType: targetType,
	}
	if targetID != "" {
		entry.TargetID = &targetID
	}
	if id := auth.FromContext(ctx); id != nil {
		entry.ActorEmail = id.Email
		if sub, err := uuid.Parse(id.Subject); err == nil {
			entry.ActorID = &sub
		}
	}
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err == nil {
			entry.Metadata = data
		}
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

// List returns the most recent entries, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

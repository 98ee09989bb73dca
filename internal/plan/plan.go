// Package plan implements the adoption-plan progress and sync engine: it
// instantiates customer plans from product/solution templates, reconciles a
// plan against its current template without discarding recorded progress, and
// recomputes weighted completion aggregates as task statuses change.
package plan

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/pkg/bus"
)

var (
	// ErrAssignmentNotFound is returned when a plan references a missing or
	// deleted assignment or template.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrTemplateDeleted is returned when the plan's template product or
	// solution has been soft deleted.
	ErrTemplateDeleted = errors.New("template no longer exists")
)

// Service executes plan mutations. Every operation runs inside a single
// database transaction; events publish only after commit.
type Service struct {
	db  *gorm.DB
	bus *bus.Bus
}

// New returns a Service over the given ORM handle. The bus may be nil.
func New(db *gorm.DB, b *bus.Bus) *Service {
	return &Service{db: db, bus: b}
}

// SyncedEvent is published on bus.SubjectPlanSynced after a successful sync.
type SyncedEvent struct {
	PlanID     uuid.UUID `json:"plan_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Kind       string    `json:"kind"`
	Progress   float64   `json:"progress_percentage"`
	NeedsSync  bool      `json:"needs_sync"`
	SyncedAt   time.Time `json:"synced_at"`
}

// StatusEvent is published on bus.SubjectTaskStatus after a status update.
type StatusEvent struct {
	TaskID   uuid.UUID `json:"task_id"`
	PlanID   uuid.UUID `json:"plan_id"`
	Status   string    `json:"status"`
	Source   string    `json:"source"`
	Progress float64   `json:"progress_percentage"`
}

// Package handlers exposes the adoption platform over HTTP. Handlers stay
// thin: request decoding, auth, and response shaping here; plan and telemetry
// semantics live in their own packages.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"adoptd/internal/audit"
	"adoptd/internal/config"
	"adoptd/internal/devtools"
	"adoptd/internal/plan"
	"adoptd/internal/telemetry"
	"adoptd/pkg/bus"
	gos3 "adoptd/pkg/s3"
)

// Store holds external dependencies required by the API layer. DB is the
// pgx read pool for reporting queries; ORM carries all writes. S3, Bus, and
// DB may be nil, in which case the features backed by them respond 424.
type Store struct {
	DB  *pgxpool.Pool
	ORM *gorm.DB
	S3  *gos3.Client
	Bus *bus.Bus
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	store    *Store
	config   config.Config
	plans    *plan.Service
	importer *telemetry.Importer
	audit    *audit.Recorder
	console  *devtools.Runner
}

// New initialises the API layer.
func New(store *Store, cfg config.Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}

	a := &API{
		store:    store,
		config:   cfg,
		plans:    plan.New(store.ORM, store.Bus),
		audit:    audit.NewRecorder(store.ORM),
	}
	a.importer = telemetry.NewImporter(store.ORM, a.plans, store.Bus)
	if cfg.DevtoolsEnabled && !cfg.IsProduction() {
		a.console = devtools.NewRunner(devtools.NewStore(cfg.DevtoolsJobTTL, cfg.DevtoolsMaxJobs))
	}
	return a, nil
}

func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid " + param)
	}
	return id, nil
}

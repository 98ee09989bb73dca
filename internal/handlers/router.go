package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"adoptd/internal/auth"
	"adoptd/pkg/db"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Use(httprate.Limit(a.config.RateLimitRequests, a.config.RateLimitWindow))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if a.store.DB != nil {
			if err := db.Ping(req.Context(), a.store.DB); err != nil {
				respondError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method("GET", "/metrics", promhttp.Handler())

	devFallback := !a.config.IsProduction()

	r.Route("/v1", func(r chi.Router) {
		r.Use(otelMiddleware)
		r.Use(auth.Middleware(a.config.JWTSecret, devFallback))

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", a.handleListCustomers)
			r.Post("/", a.handleCreateCustomer)
			r.Get("/{customerID}", a.handleGetCustomer)
			r.Put("/{customerID}", a.handleUpdateCustomer)
			r.Delete("/{customerID}", a.handleDeleteCustomer)
			r.Get("/{customerID}/progress", a.handleCustomerProgress)
			r.Post("/{customerID}/products", a.handleAssignProduct)
			r.Post("/{customerID}/solutions", a.handleAssignSolution)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", a.handleListProducts)
			r.Post("/", a.handleCreateProduct)
			r.Post("/import", a.handleImportProduct)
			r.Get("/{productID}", a.handleGetProduct)
			r.Put("/{productID}", a.handleUpdateProduct)
			r.Delete("/{productID}", a.handleDeleteProduct)
			r.Get("/{productID}/export", a.handleExportProduct)
		})

		r.Route("/solutions", func(r chi.Router) {
			r.Get("/", a.handleListSolutions)
			r.Post("/", a.handleCreateSolution)
			r.Get("/{solutionID}", a.handleGetSolution)
			r.Put("/{solutionID}", a.handleUpdateSolution)
			r.Delete("/{solutionID}", a.handleDeleteSolution)
			r.Put("/{solutionID}/products", a.handleSetSolutionProducts)
		})

		r.Route("/adoption-plans", func(r chi.Router) {
			r.Post("/", a.handleCreatePlan)
			r.Get("/{planID}", a.handleGetPlan)
			r.Post("/{planID}/sync", a.handleSyncPlan)
			r.Post("/{planID}/remove-stale", a.handleRemoveStaleTasks)
			r.Get("/{planID}/telemetry/template", a.handleTelemetryTemplate)
		})

		r.Route("/solution-plans", func(r chi.Router) {
			r.Post("/", a.handleCreateSolutionPlan)
			r.Get("/{planID}", a.handleGetSolutionPlan)
			r.Post("/{planID}/sync", a.handleSyncSolutionPlan)
		})

		r.Get("/tasks/{taskID}", a.handleGetTask)
		r.Patch("/tasks/{taskID}/status", a.handleUpdateTaskStatus)
		r.Get("/solution-tasks/{taskID}", a.handleGetSolutionTask)
		r.Patch("/solution-tasks/{taskID}/status", a.handleUpdateSolutionTaskStatus)

		r.Get("/users", a.handleListUsers)
		r.Get("/roles", a.handleListRoles)
		r.With(auth.RequireRole("Admin")).Get("/audit-logs", a.handleListAuditLogs)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(auth.RequireAdminHeader).
			Post("/telemetry/import/{planID}", a.handleImportTelemetry)
		r.With(auth.RequireAdminHeader).
			Post("/solution-telemetry/import/{planID}", a.handleImportSolutionTelemetry)

		if a.console != nil {
			r.Route("/dev", func(r chi.Router) {
				r.Use(auth.Middleware(a.config.JWTSecret, devFallback))
				r.Use(auth.RequireRole("Admin"))
				r.Get("/jobs", a.handleListJobs)
				r.Post("/jobs", a.handleStartJob)
				r.Get("/jobs/{jobID}", a.handleGetJob)
				r.Get("/jobs/{jobID}/stream", a.handleStreamJob)
				r.Get("/jobs/{jobID}/log", a.handleDownloadJobLog)
			})
		}
	})

	return r
}

func otelMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "adoptd.api")
}

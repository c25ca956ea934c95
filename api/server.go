/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Tenant:     Requires the X-Tenant header on every /api route

TENANCY:
  Tenant resolution is upstream's job; this subsystem only consumes the
  key. The middleware rejects requests without X-Tenant (400) and places
  the value on the request context, where handlers read it. Tenant fields
  in request bodies are ignored.

ROUTE GROUPS:
  /api/workers/*      Roster and salary timeline
  /api/salary/*       Tenant-wide snapshot synchronization
  /api/work-items/*   Work item registry and completion totals
  /api/batches/*      Batch submission, reads, approval

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type contextKey int

const tenantContextKey contextKey = iota

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(requireTenant)

		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Get("/{id}", h.GetWorker)
			r.Post("/{id}/salary", h.AddSalaryChange)
			r.Get("/{id}/salary", h.GetCurrentSalary)
			r.Get("/{id}/salary/history", h.GetSalaryHistory)
			r.Post("/{id}/salary/sync", h.SyncWorkerSnapshots)
		})

		// Tenant-wide snapshot synchronization
		r.Route("/salary", func(r chi.Router) {
			r.Post("/sync", h.SyncAllSnapshots)
			r.Post("/sync-after", h.SyncSnapshotsAfterDate)
		})

		// Work item routes
		r.Route("/work-items", func(r chi.Router) {
			r.Get("/", h.ListWorkItems)
			r.Post("/", h.CreateWorkItem)
			r.Post("/refresh", h.RefreshCompletedQuantities)
			r.Get("/{id}", h.GetWorkItem)
			r.Post("/{id}/recompute", h.RecomputeWorkItem)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.SubmitBatch)
			r.Get("/{groupNo}", h.GetBatch)
			r.Put("/{groupNo}", h.ReplaceBatch)
			r.Delete("/{groupNo}", h.DeleteBatch)
			r.Post("/{groupNo}/approval", h.UpdateGroupApproval)
			r.Get("/{groupNo}/approval", h.GetGroupApprovalStatus)
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requireTenant rejects requests without the X-Tenant header and places
// the tenant key on the request context.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "X-Tenant header is required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), tenantContextKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tenantFrom reads the tenant key the middleware placed on the context.
func tenantFrom(r *http.Request) string {
	tenant, _ := r.Context().Value(tenantContextKey).(string)
	return tenant
}

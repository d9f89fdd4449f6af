package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/irislab/iris-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/complete-registration", s.handleCompleteRegistration)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Get("/auth/me/permissions", s.handleMyPermissions)
			r.Post("/auth/change-password", s.handleChangePassword)

			// Identity management (the "people" module)
			r.Route("/identities", func(r chi.Router) {
				r.With(s.requirePermission(auth.ModulePeople, auth.ActionView)).Get("/", s.handleListIdentities)
				r.With(s.requirePermission(auth.ModulePeople, auth.ActionEdit)).Post("/", s.handleInviteIdentity)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.ModulePeople, auth.ActionView)).Get("/", s.handleGetIdentity)
					r.With(s.requirePermission(auth.ModulePeople, auth.ActionEdit)).Patch("/", s.handleUpdateIdentity)
					r.With(s.requirePermission(auth.ModulePeople, auth.ActionDelete)).Delete("/", s.handleDeleteIdentity)
					r.With(s.requirePermission(auth.ModulePeople, auth.ActionEdit)).Post("/activate", s.handleActivateIdentity)
					r.With(s.requirePermission(auth.ModulePeople, auth.ActionEdit)).Post("/deactivate", s.handleDeactivateIdentity)

					r.With(s.requirePermission(auth.ModulePeople, auth.ActionView)).Get("/permissions", s.handleGetPermissions)
					r.With(s.requirePermission(auth.ModulePeople, auth.ActionEdit)).Put("/permissions/{module}", s.handlePutPermission)
				})
			})

			// Work orders
			r.Route("/work-orders", func(r chi.Router) {
				r.With(s.requirePermission(auth.ModuleWorkOrders, auth.ActionView)).Get("/", s.handleListWorkOrders)
				r.With(s.requirePermission(auth.ModuleWorkOrders, auth.ActionEdit)).Post("/", s.handleCreateWorkOrder)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.ModuleWorkOrders, auth.ActionView)).Get("/", s.handleGetWorkOrder)
					r.With(s.requirePermission(auth.ModuleWorkOrders, auth.ActionEdit)).Patch("/", s.handleUpdateWorkOrder)
					r.With(s.requirePermission(auth.ModuleWorkOrders, auth.ActionDelete)).Delete("/", s.handleDeleteWorkOrder)

					// Status has its own channel: assignees may transition it
					// without holding module edit permission.
					r.Patch("/status", s.handleUpdateWorkOrderStatus)
				})
			})

			// Audit trail (reporting surface)
			r.With(s.requirePermission(auth.ModuleReports, auth.ActionView)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

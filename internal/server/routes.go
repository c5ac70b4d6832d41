package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shopflow/internal/domain"
	"shopflow/internal/health"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.handleHealth)

	if s.files != nil {
		prefix := strings.TrimSuffix(s.config.Storage.PublicPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", s.files))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Timeout(30*time.Second)).Post("/auth/login", s.handleLogin)

		// Streaming stays outside the request timeout
		r.With(s.authMiddleware).Get("/realtime/work-orders", s.handleRealtime)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(s.authMiddleware)
			s.apiRoutes(r)
		})
	})

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Minute))
		r.Use(s.authMiddleware)
		r.Post("/{name}", s.handleFunction)
	})
}

// apiRoutes registers the authenticated JSON API
func (s *Server) apiRoutes(r chi.Router) {
	r.Get("/me", s.handleMe)
	r.With(s.roleMiddleware(domain.RoleStaff)).Get("/users", s.handleListUsers)

	r.Route("/work-orders", func(r chi.Router) {
		r.Get("/", s.handleListWorkOrders)
		r.Post("/", s.handleCreateWorkOrder)
		r.Get("/counts", s.handleWorkOrderCounts)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkOrder)
			r.Patch("/", s.handleUpdateWorkOrder)
			r.With(s.roleMiddleware(domain.RoleAdmin)).Delete("/", s.handleDeleteWorkOrder)
			r.Put("/status", s.handleUpdateWorkOrderStatus)
			r.Get("/history", s.handleWorkOrderHistory)
			r.Get("/view", s.handleWorkOrderView)
			r.Get("/label.png", s.handleWorkOrderLabel)
			r.Post("/recalculate", s.handleRecalculateTotal)

			r.Get("/attachments", s.handleListAttachments)
			r.Post("/attachments", s.handleUploadAttachment)

			r.Get("/job-lines", s.handleListJobLines)
			r.Post("/job-lines", s.handleCreateJobLine)
			r.Put("/job-lines", s.handleUpsertJobLine)
			r.Put("/job-lines/order", s.handleReorderJobLines)
			r.Post("/job-lines/{lineID}/move", s.handleMoveJobLine)

			r.Get("/parts", s.handleListParts)
			r.Post("/parts", s.handleCreatePart)
		})
	})

	r.Route("/job-lines/{id}", func(r chi.Router) {
		r.Patch("/", s.handleUpdateJobLine)
		r.Delete("/", s.handleDeleteJobLine)
		r.Put("/status", s.handleJobLineStatus)
		r.Put("/completion", s.handleJobLineCompletion)
		r.Get("/parts", s.handleListJobLineParts)
	})

	r.Route("/parts/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetPart)
		r.Patch("/", s.handleUpdatePart)
		r.Delete("/", s.handleDeletePart)
		r.Get("/form", s.handleGetPartForm)
		r.Get("/price-check", s.handlePartPriceCheck)
	})

	r.Route("/attachments/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetAttachment)
		r.Delete("/", s.handleDeleteAttachment)
	})

	r.Route("/presets/{kind}", func(r chi.Router) {
		r.Get("/", s.handleListPresets)
		r.Post("/", s.handleAddOrUsePreset)
		r.Post("/{id}/use", s.handleUsePreset)
		r.With(s.roleMiddleware(domain.RoleAdmin)).Delete("/{id}", s.handleDeletePreset)
	})

	r.Route("/email", func(r chi.Router) {
		r.Post("/sends/{id}/events/{event}", s.handleTrackEvent)

		r.Group(func(r chi.Router) {
			r.Use(s.roleMiddleware(domain.RoleStaff))

			r.Get("/templates", s.handleListTemplates)
			r.Post("/templates", s.handleCreateTemplate)
			r.Get("/templates/{id}", s.handleGetTemplate)
			r.Put("/templates/{id}", s.handleUpdateTemplate)
			r.Delete("/templates/{id}", s.handleDeleteTemplate)
			r.Get("/templates/{id}/preview", s.handlePreviewTemplate)

			r.Get("/campaigns", s.handleListCampaigns)
			r.Post("/campaigns", s.handleCreateCampaign)
			r.Get("/campaigns/{id}", s.handleGetCampaign)
			r.Put("/campaigns/{id}", s.handleUpdateCampaign)
			r.Delete("/campaigns/{id}", s.handleDeleteCampaign)
			r.Post("/campaigns/{id}/trigger", s.handleTriggerCampaign)
			r.Post("/campaigns/{id}/winner", s.handleSelectWinner)

			r.Get("/sequences", s.handleListSequences)
			r.Post("/sequences", s.handleCreateSequence)
			r.Get("/sequences/{id}", s.handleGetSequence)
			r.Put("/sequences/{id}", s.handleUpdateSequence)
			r.Delete("/sequences/{id}", s.handleDeleteSequence)
			r.Post("/sequences/{id}/steps", s.handleAddStep)
			r.Delete("/steps/{id}", s.handleDeleteStep)
			r.Get("/sequences/{id}/enrollments", s.handleListEnrollments)

			r.Post("/enrollments", s.handleEnroll)
			r.Post("/enrollments/{id}/pause", s.handlePauseEnrollment)
			r.Post("/enrollments/{id}/resume", s.handleResumeEnrollment)
			r.Post("/enrollments/{id}/cancel", s.handleCancelEnrollment)

			r.Get("/settings/schedule", s.handleGetSchedule)
			r.Put("/settings/schedule", s.handleSaveSchedule)
		})
	})
}

// handleHealth serves the last health monitor snapshot
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, health.Snapshot{Status: health.StatusUnknown, Checks: []health.CheckResult{}})
		return
	}
	snap := s.monitor.Snapshot()
	status := http.StatusOK
	if snap.Status == health.StatusDegraded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}

// handleRealtime streams work order change events
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeHTTP(w, r)
}

package handlers

import (
	"net/http"

	"santa-tracker-backend/internal/middleware"
	"santa-tracker-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// VisitHandler handles the live progress of started tours
type VisitHandler struct {
	visitService *services.VisitService
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visitService *services.VisitService) *VisitHandler {
	return &VisitHandler{
		visitService: visitService,
	}
}

// StartTour handles POST /api/visits/{id}/start where id is a tour id
func (h *VisitHandler) StartTour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tour, err := h.visitService.StartTour(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "start tour")
		return
	}
	respondJSON(w, http.StatusOK, tour)
}

// UpdateStatus handles PATCH /api/visits/{id}/status
func (h *VisitHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.UpdateVisitStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	update, err := h.visitService.UpdateVisitStatus(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondServiceError(w, err, "update visit status")
		return
	}
	respondJSON(w, http.StatusOK, update)
}

// Requeue handles POST /api/visits/{id}/requeue
func (h *VisitHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	visit, err := h.visitService.Requeue(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "requeue visit")
		return
	}
	respondJSON(w, http.StatusOK, visit)
}

// PostLocation handles POST /api/visits/{id}/location where id is a tour id
func (h *VisitHandler) PostLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.LocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	update, err := h.visitService.PostLocation(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "post location")
		return
	}
	respondJSON(w, http.StatusOK, update)
}

// CurrentVisit handles GET /api/visits/tour/{tourId}/current
func (h *VisitHandler) CurrentVisit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.visitService.CurrentSnapshot(r.Context(), chi.URLParam(r, "tourId"))
	if err != nil {
		respondServiceError(w, err, "get current visit")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

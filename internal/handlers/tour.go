package handlers

import (
	"errors"
	"net/http"

	"santa-tracker-backend/internal/middleware"
	"santa-tracker-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TourHandler handles tour-related HTTP requests
type TourHandler struct {
	tourService  *services.TourService
	visitService *services.VisitService
}

// NewTourHandler creates a new tour handler
func NewTourHandler(tourService *services.TourService, visitService *services.VisitService) *TourHandler {
	return &TourHandler{
		tourService:  tourService,
		visitService: visitService,
	}
}

// CreateTour handles POST /api/tours
func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guideID := middleware.GetGuideID(ctx)

	var req services.CreateTourRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tour, err := h.tourService.CreateTour(ctx, guideID, req)
	if err != nil {
		respondServiceError(w, err, "create tour")
		return
	}
	respondJSON(w, http.StatusCreated, tour)
}

// ListTours handles GET /api/tours
func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tours, err := h.tourService.ListTours(ctx, middleware.GetGuideID(ctx))
	if err != nil {
		respondServiceError(w, err, "list tours")
		return
	}
	respondJSON(w, http.StatusOK, tours)
}

// GetTour handles GET /api/tours/{id}
func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tour, err := h.tourService.GetTour(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get tour")
		return
	}
	respondJSON(w, http.StatusOK, tour)
}

// GetTourByInvite handles GET /api/tours/invite/{code}
func (h *TourHandler) GetTourByInvite(w http.ResponseWriter, r *http.Request) {
	tour, err := h.tourService.GetTourByInvite(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, err, "get tour")
		return
	}
	respondJSON(w, http.StatusOK, tour)
}

// UpdateStatus handles PATCH /api/tours/{id}/status
func (h *TourHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.UpdateTourStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tour, err := h.visitService.UpdateTourStatus(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondServiceError(w, err, "update tour status")
		return
	}
	respondJSON(w, http.StatusOK, tour)
}

// DeleteTour handles DELETE /api/tours/{id}
func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.tourService.DeleteTour(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "delete tour")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderFamilies handles PATCH /api/tours/{id}/families/order
func (h *TourHandler) ReorderFamilies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	families, visits, err := h.visitService.Reorder(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"), req.FamilyOrders)
	if err != nil {
		respondServiceError(w, err, "reorder families")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"families": families,
		"visits":   visits,
	})
}

// GeocodeFamilies handles POST /api/tours/{id}/geocode
func (h *TourHandler) GeocodeFamilies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tourID := chi.URLParam(r, "id")

	queued, err := h.tourService.GeocodeMissing(ctx, middleware.GetGuideID(ctx), tourID)
	if err != nil {
		respondServiceError(w, err, "geocode families")
		return
	}

	log.Info().Str("tour_id", tourID).Int("queued", queued).Msg("Geocoding queued")

	respondJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}

// ExportTour handles GET /api/tours/{id}/export
func (h *TourHandler) ExportTour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := h.tourService.Export(ctx, middleware.GetGuideID(ctx), chi.URLParam(r, "id"))
	if errors.Is(err, services.ErrArchiveDisabled) {
		respondError(w, "Tour export is not configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		respondServiceError(w, err, "export tour")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

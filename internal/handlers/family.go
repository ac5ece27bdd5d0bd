package handlers

import (
	"net/http"

	"santa-tracker-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// FamilyHandler handles family sign-ups and edits. Families have no accounts;
// the invite code and family id are the only credentials.
type FamilyHandler struct {
	familyService *services.FamilyService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *services.FamilyService) *FamilyHandler {
	return &FamilyHandler{
		familyService: familyService,
	}
}

// SignUp handles POST /api/families/invite/{code}
func (h *FamilyHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.FamilyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	family, created, err := h.familyService.UpsertByInvite(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		respondServiceError(w, err, "save family")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, family)
}

// GetFamily handles GET /api/families/{id}
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	family, err := h.familyService.GetFamily(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get family")
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// UpdateFamily handles PUT /api/families/{id}
func (h *FamilyHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req services.FamilyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	family, err := h.familyService.UpdateFamily(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "update family")
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// DeleteFamily handles DELETE /api/families/{id}
func (h *FamilyHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.familyService.DeleteFamily(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "delete family")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

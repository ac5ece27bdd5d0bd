package handlers

import (
	"net/http"

	"santa-tracker-backend/internal/middleware"
	"santa-tracker-backend/internal/services"
)

// AuthHandler handles guide accounts
type AuthHandler struct {
	guideService *services.GuideService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(guideService *services.GuideService) *AuthHandler {
	return &AuthHandler{
		guideService: guideService,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.guideService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "register")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.guideService.Login(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "log in")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// UpdatePushToken handles PUT /api/auth/push-token
func (h *AuthHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guideID := middleware.GetGuideID(ctx)

	var req services.PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.guideService.UpdatePushToken(ctx, guideID, req.PushToken); err != nil {
		respondServiceError(w, err, "update push token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

package handlers

import (
	"net/http"

	"santa-tracker-backend/internal/services"
)

// JokeHandler serves jokes to viewers waiting for Santa
type JokeHandler struct {
	jokes *services.JokeRotator
}

// NewJokeHandler creates a new joke handler
func NewJokeHandler(jokes *services.JokeRotator) *JokeHandler {
	return &JokeHandler{jokes: jokes}
}

// Random handles GET /api/jokes/random
func (h *JokeHandler) Random(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jokes.Random())
}

// Next handles GET /api/jokes/next
func (h *JokeHandler) Next(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jokes.Next())
}

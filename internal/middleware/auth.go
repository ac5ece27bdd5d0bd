package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const guideIDKey contextKey = "guide_id"

// TokenValidator resolves a bearer token to a guide id
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			guideID, err := tokens.ValidateJWT(parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), guideIDKey, guideID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetGuideID extracts the authenticated guide ID from context
func GetGuideID(ctx context.Context) string {
	guideID, ok := ctx.Value(guideIDKey).(string)
	if !ok {
		return ""
	}
	return guideID
}

// WithGuideID returns a context carrying an authenticated guide ID
func WithGuideID(ctx context.Context, guideID string) context.Context {
	return context.WithValue(ctx, guideIDKey, guideID)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

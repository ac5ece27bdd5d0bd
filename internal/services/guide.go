package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"santa-tracker-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// GuideService handles guide accounts and their tokens
type GuideService struct {
	guides    GuideStore
	jwtSecret string
	tokenTTL  time.Duration
}

// NewGuideService creates a new guide service
func NewGuideService(guides GuideStore, jwtSecret string, tokenTTL time.Duration) *GuideService {
	return &GuideService{
		guides:    guides,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// RegisterRequest represents a guide sign-up
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest represents a guide login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PushTokenRequest represents a device token registration; an empty token clears it
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	TourGuide *models.TourGuide `json:"tour_guide"`
	Token     string            `json:"token"`
}

// Register creates a guide account
func (s *GuideService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	guide := &models.TourGuide{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.guides.Create(ctx, guide); err != nil {
		return nil, err
	}

	token, err := s.GenerateJWT(guide.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("guide_id", guide.ID).Msg("Guide registered")

	return &AuthResponse{TourGuide: guide, Token: token}, nil
}

// Login checks a guide's credentials and issues a token
func (s *GuideService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	guide, err := s.guides.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(guide.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
	}

	token, err := s.GenerateJWT(guide.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{TourGuide: guide, Token: token}, nil
}

// UpdatePushToken stores the APNs device token of a guide
func (s *GuideService) UpdatePushToken(ctx context.Context, guideID, pushToken string) error {
	var token *string
	if t := strings.TrimSpace(pushToken); t != "" {
		token = &t
	}
	return s.guides.UpdatePushToken(ctx, guideID, token)
}

// GenerateJWT generates a JWT token for a guide
func (s *GuideService) GenerateJWT(guideID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"guide_id": guideID,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the guide ID
func (s *GuideService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	guideID, ok := claims["guide_id"].(string)
	if !ok {
		return "", fmt.Errorf("guide_id not found in token")
	}

	return guideID, nil
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"santa-tracker-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	inviteCodeLength = 6
	// no 0/O or 1/I to keep codes readable over the phone
	inviteCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	geocodeBatchTimeout = 10 * time.Minute
)

// TourService handles tour-related business logic
type TourService struct {
	tours    TourStore
	families FamilyStore
	visits   VisitStore
	hub      Broadcaster
	geocoder Geocoder
	archive  Archiver

	// geocodeEvery spaces batch geocoding requests
	geocodeEvery time.Duration
	now          func() time.Time
}

// NewTourService creates a new tour service
func NewTourService(
	tours TourStore,
	families FamilyStore,
	visits VisitStore,
	hub Broadcaster,
	geocoder Geocoder,
	archive Archiver,
) *TourService {
	return &TourService{
		tours:        tours,
		families:     families,
		visits:       visits,
		hub:          hub,
		geocoder:     geocoder,
		archive:      archive,
		geocodeEvery: time.Second,
		now:          time.Now,
	}
}

// CreateTourRequest represents a request to create a tour
type CreateTourRequest struct {
	Name    string `json:"name" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required,len=2,alpha"`
	ZipCode string `json:"zip_code" validate:"required,len=5,numeric"`
}

// ExportResponse represents the location of a tour export
type ExportResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// GenerateInviteCode generates an invite code no other tour uses
func (s *TourService) GenerateInviteCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code := generateInviteCode()
		exists, err := s.tours.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique invite code after %d attempts", maxAttempts)
}

func generateInviteCode() string {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeChars))))
		code[i] = inviteCodeChars[n.Int64()]
	}
	return string(code)
}

// CreateTour creates a PLANNED tour for the guide
func (s *TourService) CreateTour(ctx context.Context, guideID string, req CreateTourRequest) (*models.Tour, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.City = strings.TrimSpace(req.City)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	code, err := s.GenerateInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	tour := &models.Tour{
		ID:         uuid.New().String(),
		GuideID:    guideID,
		Name:       req.Name,
		City:       req.City,
		State:      strings.ToUpper(req.State),
		ZipCode:    req.ZipCode,
		Status:     models.TourPlanned,
		InviteCode: code,
		CreatedAt:  s.now(),
		Families:   []*models.Family{},
	}

	if err := s.tours.Create(ctx, tour); err != nil {
		return nil, fmt.Errorf("failed to create tour: %w", err)
	}

	log.Info().Str("tour_id", tour.ID).Str("invite_code", code).Msg("Tour created")

	return tour, nil
}

// ListTours returns the guide's tours, newest first, with their families
func (s *TourService) ListTours(ctx context.Context, guideID string) ([]*models.Tour, error) {
	tours, err := s.tours.ListByGuide(ctx, guideID)
	if err != nil {
		return nil, err
	}
	for _, tour := range tours {
		families, err := s.families.ListByTour(ctx, tour.ID)
		if err != nil {
			return nil, err
		}
		tour.Families = families
	}
	if tours == nil {
		tours = []*models.Tour{}
	}
	return tours, nil
}

// GetTour returns one of the guide's tours with ordered families and visits
func (s *TourService) GetTour(ctx context.Context, guideID, tourID string) (*models.Tour, error) {
	tour, err := ownedTour(ctx, s.tours, guideID, tourID)
	if err != nil {
		return nil, err
	}
	return withProgress(ctx, s.families, s.visits, tour)
}

// GetTourByInvite returns the public view of a tour with its families
func (s *TourService) GetTourByInvite(ctx context.Context, code string) (*models.Tour, error) {
	tour, err := s.tours.GetByInviteCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	families, err := s.families.ListByTour(ctx, tour.ID)
	if err != nil {
		return nil, err
	}
	tour.Families = families
	return tour, nil
}

// DeleteTour deletes one of the guide's tours with everything in it
func (s *TourService) DeleteTour(ctx context.Context, guideID, tourID string) error {
	if _, err := ownedTour(ctx, s.tours, guideID, tourID); err != nil {
		return err
	}
	if err := s.tours.Delete(ctx, tourID); err != nil {
		return err
	}
	log.Info().Str("tour_id", tourID).Msg("Tour deleted")
	return nil
}

// GeocodeMissing looks up coordinates for every family of the tour that has
// none. Lookups run in the background at the geocoder's rate limit and each
// resolved family is broadcast as family-updated. It returns the number of
// families queued.
func (s *TourService) GeocodeMissing(ctx context.Context, guideID, tourID string) (int, error) {
	tour, err := ownedTour(ctx, s.tours, guideID, tourID)
	if err != nil {
		return 0, err
	}
	families, err := s.families.ListByTour(ctx, tourID)
	if err != nil {
		return 0, err
	}

	var missing []*models.Family
	for _, f := range families {
		if f.Latitude == nil || f.Longitude == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	go func() {
		bctx, cancel := context.WithTimeout(context.Background(), geocodeBatchTimeout)
		defer cancel()
		s.geocodeBatch(bctx, tour, missing)
	}()

	return len(missing), nil
}

func (s *TourService) geocodeBatch(ctx context.Context, tour *models.Tour, families []*models.Family) int {
	limiter := rate.NewLimiter(rate.Every(s.geocodeEvery), 1)
	resolved := 0
	for _, family := range families {
		if err := limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Str("tour_id", tour.ID).Msg("Geocoding batch stopped")
			break
		}

		coords, err := s.geocoder.Geocode(ctx, FamilyAddress(family, tour))
		if err != nil {
			log.Warn().Err(err).Str("family_id", family.ID).Msg("Failed to geocode family")
			continue
		}
		if coords == nil {
			continue
		}
		if err := s.families.UpdateCoordinates(ctx, family.ID, coords); err != nil {
			log.Warn().Err(err).Str("family_id", family.ID).Msg("Failed to store coordinates")
			continue
		}

		family.Latitude = &coords.Latitude
		family.Longitude = &coords.Longitude
		s.hub.Emit(tour.ID, EventFamilyUpdated, map[string]any{
			"tour_id": tour.ID,
			"family":  family,
		})
		resolved++
	}

	log.Info().
		Str("tour_id", tour.ID).
		Int("queued", len(families)).
		Int("resolved", resolved).
		Msg("Geocoding batch finished")

	return resolved
}

// Export uploads a JSON snapshot of the tour and returns a temporary download URL
func (s *TourService) Export(ctx context.Context, guideID, tourID string) (*ExportResponse, error) {
	tour, err := s.GetTour(ctx, guideID, tourID)
	if err != nil {
		return nil, err
	}

	body, err := json.MarshalIndent(tour, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tour export: %w", err)
	}

	key := fmt.Sprintf("tours/%s/export-%s.json", tour.ID, s.now().UTC().Format("20060102T150405Z"))
	url, err := s.archive.Store(ctx, key, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("failed to store tour export: %w", err)
	}

	log.Info().Str("tour_id", tour.ID).Str("key", key).Msg("Tour exported")

	return &ExportResponse{
		Key:       key,
		URL:       url,
		ExpiresIn: int(exportURLExpiry.Seconds()),
	}, nil
}

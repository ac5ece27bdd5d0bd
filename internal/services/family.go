package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"santa-tracker-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChildRequest describes one child of a family
type ChildRequest struct {
	FirstName           string  `json:"first_name" validate:"required"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
}

// FamilyRequest represents a family sign-up or edit
type FamilyRequest struct {
	StreetNumber string         `json:"street_number" validate:"required"`
	StreetName   string         `json:"street_name" validate:"required"`
	FamilyName   string         `json:"family_name" validate:"required"`
	Children     []ChildRequest `json:"children" validate:"required,min=1,dive"`
	PhoneNumber1 *string        `json:"phone_number_1,omitempty"`
	PhoneNumber2 *string        `json:"phone_number_2,omitempty"`
	SMSOptIn     bool           `json:"sms_opt_in"`
}

// FamilyService handles family sign-ups through invite codes
type FamilyService struct {
	tours    TourStore
	families FamilyStore
	hub      Broadcaster
	geocoder Geocoder
	now      func() time.Time
}

// NewFamilyService creates a new family service
func NewFamilyService(tours TourStore, families FamilyStore, hub Broadcaster, geocoder Geocoder) *FamilyService {
	return &FamilyService{
		tours:    tours,
		families: families,
		hub:      hub,
		geocoder: geocoder,
		now:      time.Now,
	}
}

// UpsertByInvite signs a family up to the tour of the invite code. A family
// with the same name and street address is updated instead. created reports
// which of the two happened.
func (s *FamilyService) UpsertByInvite(ctx context.Context, inviteCode string, req FamilyRequest) (family *models.Family, created bool, err error) {
	if err := s.normalize(&req); err != nil {
		return nil, false, err
	}

	tour, err := s.tours.GetByInviteCode(ctx, strings.ToUpper(strings.TrimSpace(inviteCode)))
	if err != nil {
		return nil, false, err
	}

	existing, err := s.families.FindByNameAddress(ctx, tour.ID, req.FamilyName, req.StreetNumber, req.StreetName)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		family, err = s.update(ctx, tour, existing, req)
		return family, false, err
	}

	order := 0
	maxOrder, ok, err := s.families.MaxOrder(ctx, tour.ID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		order = maxOrder + 1
	}

	family = &models.Family{
		ID:        uuid.New().String(),
		TourID:    tour.ID,
		Order:     order,
		CreatedAt: s.now(),
	}
	applyFamilyRequest(family, req)
	s.locate(ctx, tour, family)

	if err := s.families.Create(ctx, family); err != nil {
		return nil, false, fmt.Errorf("failed to create family: %w", err)
	}

	s.hub.Emit(tour.ID, EventFamilyAdded, map[string]any{
		"tour_id": tour.ID,
		"family":  family,
	})

	log.Info().
		Str("tour_id", tour.ID).
		Str("family_id", family.ID).
		Int("order", family.Order).
		Msg("Family signed up")

	return family, true, nil
}

// GetFamily returns a family with its children
func (s *FamilyService) GetFamily(ctx context.Context, familyID string) (*models.Family, error) {
	return s.families.GetByID(ctx, familyID)
}

// UpdateFamily rewrites a family and replaces its children
func (s *FamilyService) UpdateFamily(ctx context.Context, familyID string, req FamilyRequest) (*models.Family, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	existing, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	tour, err := s.tours.GetByID(ctx, existing.TourID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, tour, existing, req)
}

func (s *FamilyService) update(ctx context.Context, tour *models.Tour, family *models.Family, req FamilyRequest) (*models.Family, error) {
	applyFamilyRequest(family, req)
	s.locate(ctx, tour, family)

	if err := s.families.Update(ctx, family); err != nil {
		return nil, fmt.Errorf("failed to update family: %w", err)
	}

	s.hub.Emit(tour.ID, EventFamilyUpdated, map[string]any{
		"tour_id": tour.ID,
		"family":  family,
	})

	log.Info().Str("tour_id", tour.ID).Str("family_id", family.ID).Msg("Family updated")

	return family, nil
}

// DeleteFamily removes a family along with its children and visits
func (s *FamilyService) DeleteFamily(ctx context.Context, familyID string) error {
	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return err
	}
	if err := s.families.Delete(ctx, familyID); err != nil {
		return err
	}

	s.hub.Emit(family.TourID, EventFamilyRemoved, map[string]any{
		"tour_id":   family.TourID,
		"family_id": family.ID,
		"family":    family,
	})

	log.Info().Str("tour_id", family.TourID).Str("family_id", family.ID).Msg("Family removed")

	return nil
}

func (s *FamilyService) normalize(req *FamilyRequest) error {
	req.StreetNumber = strings.TrimSpace(req.StreetNumber)
	req.StreetName = strings.TrimSpace(req.StreetName)
	req.FamilyName = strings.TrimSpace(req.FamilyName)
	if err := validateRequest(req); err != nil {
		return err
	}

	var err error
	if req.PhoneNumber1, err = normalizeOptionalPhone(req.PhoneNumber1); err != nil {
		return err
	}
	if req.PhoneNumber2, err = normalizeOptionalPhone(req.PhoneNumber2); err != nil {
		return err
	}
	if req.SMSOptIn && req.PhoneNumber1 == nil && req.PhoneNumber2 == nil {
		return fmt.Errorf("sms opt-in needs a phone number: %w", models.ErrInvalid)
	}
	return nil
}

// locate geocodes the family address; a failed lookup clears the coordinates
func (s *FamilyService) locate(ctx context.Context, tour *models.Tour, family *models.Family) {
	family.Latitude, family.Longitude = nil, nil

	coords, err := s.geocoder.Geocode(ctx, FamilyAddress(family, tour))
	if err != nil {
		log.Warn().Err(err).Str("family_id", family.ID).Msg("Failed to geocode family address")
		return
	}
	if coords != nil {
		family.Latitude = &coords.Latitude
		family.Longitude = &coords.Longitude
	}
}

func applyFamilyRequest(family *models.Family, req FamilyRequest) {
	family.StreetNumber = req.StreetNumber
	family.StreetName = req.StreetName
	family.FamilyName = req.FamilyName
	family.PhoneNumber1 = req.PhoneNumber1
	family.PhoneNumber2 = req.PhoneNumber2
	family.SMSOptIn = req.SMSOptIn

	family.Children = make([]*models.Child, 0, len(req.Children))
	for _, c := range req.Children {
		family.Children = append(family.Children, &models.Child{
			ID:                  uuid.New().String(),
			FamilyID:            family.ID,
			FirstName:           strings.TrimSpace(c.FirstName),
			SpecialInstructions: c.SpecialInstructions,
		})
	}
}

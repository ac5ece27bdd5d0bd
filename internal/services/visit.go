package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"santa-tracker-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// minOrder is below every order a visit can hold
const minOrder = math.MinInt32

// Sources of a visit-updated event
const (
	SourceGuide = "guide"
	SourceSMS   = "sms"
)

// TourNotifier sends the outbound messages triggered by tour progress
type TourNotifier interface {
	TourStarted(tour *models.Tour)
	OnDeck(tour *models.Tour, family *models.Family, eta time.Duration)
}

// VisitService owns the visit queue and the visit state machine of tours
type VisitService struct {
	tours    TourStore
	families FamilyStore
	visits   VisitStore
	hub      Broadcaster
	notifier TourNotifier
	locks    *TourLocks
	now      func() time.Time
}

// NewVisitService creates a new visit service
func NewVisitService(
	tours TourStore,
	families FamilyStore,
	visits VisitStore,
	hub Broadcaster,
	notifier TourNotifier,
) *VisitService {
	return &VisitService{
		tours:    tours,
		families: families,
		visits:   visits,
		hub:      hub,
		notifier: notifier,
		locks:    NewTourLocks(),
		now:      time.Now,
	}
}

// UpdateVisitStatusRequest represents a request to change a visit status
type UpdateVisitStatusRequest struct {
	Status models.VisitStatus `json:"status" validate:"required"`
}

// UpdateTourStatusRequest represents a request to change a tour status
type UpdateTourStatusRequest struct {
	Status models.TourStatus `json:"status" validate:"required"`
}

// LocationRequest represents a location ping from the guide
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// VisitUpdate is the result of a visit status change
type VisitUpdate struct {
	Visit         *models.Visit `json:"visit"`
	AdvancedVisit *models.Visit `json:"advanced_visit"`
}

// LocationUpdate is the ephemeral position broadcast to a tour room
type LocationUpdate struct {
	TourID    string  `json:"tour_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

// Snapshot is the public view of a tour's progress
type Snapshot struct {
	Visits         []*models.Visit `json:"visits"`
	CurrentVisit   *models.Visit   `json:"current_visit"`
	NextVisit      *models.Visit   `json:"next_visit"`
	CompletedCount int             `json:"completed_count"`
	TotalCount     int             `json:"total_count"`
	Schedule       *Schedule       `json:"schedule"`
	ETAs           []ETA           `json:"etas"`
}

// StartTour rebuilds the visits of a tour from its families and activates it.
// The first family is ON_WAY, the others PENDING.
func (s *VisitService) StartTour(ctx context.Context, guideID, tourID string) (*models.Tour, error) {
	unlock := s.locks.Lock(tourID)
	defer unlock()

	tour, err := ownedTour(ctx, s.tours, guideID, tourID)
	if err != nil {
		return nil, err
	}

	families, err := s.families.ListByTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if len(families) == 0 {
		return nil, fmt.Errorf("tour has no families: %w", models.ErrInvalid)
	}

	now := s.now()
	visits := make([]*models.Visit, 0, len(families))
	for i, family := range families {
		status := models.VisitPending
		if i == 0 {
			status = models.VisitOnWay
		}
		visits = append(visits, &models.Visit{
			ID:        uuid.New().String(),
			TourID:    tourID,
			FamilyID:  family.ID,
			Order:     i,
			Status:    status,
			CreatedAt: now,
			Family:    family,
		})
	}

	if err := s.visits.ReplaceForTour(ctx, tourID, visits); err != nil {
		return nil, fmt.Errorf("failed to create visits: %w", err)
	}

	tour.Status = models.TourActive
	tour.StartedAt = &now
	tour.CompletedAt = nil
	if err := s.tours.UpdateStatus(ctx, tour); err != nil {
		return nil, fmt.Errorf("failed to activate tour: %w", err)
	}
	tour.Families = families
	tour.Visits = visits

	s.hub.Emit(tourID, EventTourStarted, map[string]any{
		"tour_id": tourID,
		"tour":    tour,
		"visits":  visits,
	})
	s.notifier.TourStarted(tour)

	log.Info().
		Str("tour_id", tourID).
		Int("visits", len(visits)).
		Msg("Tour started")

	return tour, nil
}

// UpdateVisitStatus moves a visit to a new status. Completing a visit
// advances the next PENDING visit to ON_WAY when nothing else is active.
func (s *VisitService) UpdateVisitStatus(ctx context.Context, guideID, visitID string, status models.VisitStatus) (*VisitUpdate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid visit status %q: %w", status, models.ErrInvalid)
	}

	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(visit.TourID)
	defer unlock()

	tour, err := ownedTour(ctx, s.tours, guideID, visit.TourID)
	if err != nil {
		return nil, err
	}

	visit, err = s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.Status == status {
		s.attachFamily(ctx, visit)
		return &VisitUpdate{Visit: visit}, nil
	}
	if visit.Status.Terminal() {
		return nil, fmt.Errorf("visit is already %s, requeue it first: %w", visit.Status, models.ErrConflict)
	}
	if status.Active() {
		if err := s.ensureNoOtherActive(ctx, visit); err != nil {
			return nil, err
		}
	}

	now := s.now()
	visit.Status = status
	switch status {
	case models.VisitVisiting:
		if visit.StartedAt == nil {
			visit.StartedAt = &now
		}
	case models.VisitCompleted:
		visit.CompletedAt = &now
	}

	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to update visit: %w", err)
	}
	s.attachFamily(ctx, visit)

	result := &VisitUpdate{Visit: visit}
	if status == models.VisitCompleted {
		advanced, err := s.advance(ctx, tour, visit.Order)
		if err != nil {
			log.Error().Err(err).Str("tour_id", tour.ID).Msg("Failed to advance to next visit")
		}
		result.AdvancedVisit = advanced
	}

	s.emitVisitUpdated(tour.ID, result, SourceGuide, "")

	log.Info().
		Str("tour_id", tour.ID).
		Str("visit_id", visit.ID).
		Str("status", string(status)).
		Msg("Visit status updated")

	return result, nil
}

func (s *VisitService) ensureNoOtherActive(ctx context.Context, visit *models.Visit) error {
	active, err := s.visits.ListActive(ctx, visit.TourID)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.ID != visit.ID {
			return fmt.Errorf("visit %s is already %s: %w", other.ID, other.Status, models.ErrConflict)
		}
	}
	return nil
}

// advance sets the next visit ON_WAY after a completion and texts its family.
// It returns nil when another visit is still active or the queue is exhausted.
func (s *VisitService) advance(ctx context.Context, tour *models.Tour, completedOrder int) (*models.Visit, error) {
	active, err := s.visits.ListActive(ctx, tour.ID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, nil
	}

	next, err := s.nextToAdvance(ctx, tour.ID, completedOrder)
	if err != nil || next == nil {
		return nil, err
	}

	next.Status = models.VisitOnWay
	if err := s.visits.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to advance visit: %w", err)
	}
	s.attachFamily(ctx, next)

	if next.Family != nil {
		s.notifier.OnDeck(tour, next.Family, VisitSlot)
	}
	return next, nil
}

func (s *VisitService) attachFamily(ctx context.Context, visit *models.Visit) {
	family, err := s.families.GetByID(ctx, visit.FamilyID)
	if err != nil {
		log.Warn().Err(err).Str("visit_id", visit.ID).Msg("Failed to load visit family")
		return
	}
	visit.Family = family
}

func (s *VisitService) emitVisitUpdated(tourID string, update *VisitUpdate, source, classification string) {
	payload := map[string]any{
		"tour_id":        tourID,
		"visit":          update.Visit,
		"advanced_visit": update.AdvancedVisit,
		"source":         source,
	}
	if classification != "" {
		payload["classification"] = classification
	}
	s.hub.Emit(tourID, EventVisitUpdated, payload)
}

// UpdateTourStatus sets the lifecycle status of a tour. Activating a tour that
// was not active texts its opted-in families.
func (s *VisitService) UpdateTourStatus(ctx context.Context, guideID, tourID string, status models.TourStatus) (*models.Tour, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid tour status %q: %w", status, models.ErrInvalid)
	}

	unlock := s.locks.Lock(tourID)
	defer unlock()

	tour, err := ownedTour(ctx, s.tours, guideID, tourID)
	if err != nil {
		return nil, err
	}

	previous := tour.Status
	now := s.now()
	tour.Status = status
	switch status {
	case models.TourActive:
		if tour.StartedAt == nil {
			tour.StartedAt = &now
		}
	case models.TourCompleted:
		tour.CompletedAt = &now
	}

	if err := s.tours.UpdateStatus(ctx, tour); err != nil {
		return nil, fmt.Errorf("failed to update tour status: %w", err)
	}

	s.hub.Emit(tourID, EventTourStatusUpdated, map[string]any{
		"tour_id": tourID,
		"status":  status,
		"tour":    tour,
	})
	if status == models.TourActive && previous != models.TourActive {
		s.notifier.TourStarted(tour)
	}

	log.Info().
		Str("tour_id", tourID).
		Str("status", string(status)).
		Msg("Tour status updated")

	return tour, nil
}

// PostLocation broadcasts the guide's position to the tour room. Nothing is stored.
func (s *VisitService) PostLocation(ctx context.Context, guideID, tourID string, req LocationRequest) (*LocationUpdate, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := ownedTour(ctx, s.tours, guideID, tourID); err != nil {
		return nil, err
	}

	update := &LocationUpdate{
		TourID:    tourID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
	s.hub.Emit(tourID, EventSantaLocation, update)
	return update, nil
}

// CurrentSnapshot returns the public progress view of a tour
func (s *VisitService) CurrentSnapshot(ctx context.Context, tourID string) (*Snapshot, error) {
	tour, err := s.tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	visits, err := s.visits.ListByTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	families, err := s.families.ListByTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	attachFamilies(visits, families)

	snap := &Snapshot{Visits: visits, TotalCount: len(visits)}
	handled := 0
	for _, v := range visits {
		if v.Status.Terminal() {
			handled++
		}
		switch {
		case v.Status.Active() && snap.CurrentVisit == nil:
			snap.CurrentVisit = v
		case v.Status == models.VisitPending && snap.NextVisit == nil:
			snap.NextVisit = v
		case v.Status == models.VisitCompleted:
			snap.CompletedCount++
		}
	}
	if tour.StartedAt != nil && tour.Status == models.TourActive {
		// orders can be sparse after reorder or requeue, so pace is measured
		// by how many visits are already behind the sleigh
		schedule := ComputeSchedule(*tour.StartedAt, handled, s.now())
		snap.Schedule = &schedule
	}
	snap.ETAs = EstimateArrivals(visits, s.now())
	return snap, nil
}

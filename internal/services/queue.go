package services

import (
	"context"
	"fmt"
	"math"

	"santa-tracker-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// ReorderRequest represents a request to reorder the families of a tour
type ReorderRequest struct {
	FamilyOrders []models.FamilyOrder `json:"family_orders" validate:"required,min=1,dive"`
}

// Reorder assigns new family orders. While the tour is ACTIVE the open visits
// of those families follow; COMPLETED and SKIPPED visits keep their order.
func (s *VisitService) Reorder(ctx context.Context, guideID, tourID string, orders []models.FamilyOrder) ([]*models.Family, []*models.Visit, error) {
	if err := validateRequest(ReorderRequest{FamilyOrders: orders}); err != nil {
		return nil, nil, err
	}

	unlock := s.locks.Lock(tourID)
	defer unlock()

	tour, err := ownedTour(ctx, s.tours, guideID, tourID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.families.Reorder(ctx, tourID, orders, tour.Status == models.TourActive); err != nil {
		return nil, nil, fmt.Errorf("failed to reorder families: %w", err)
	}

	families, err := s.families.ListByTour(ctx, tourID)
	if err != nil {
		return nil, nil, err
	}
	visits, err := s.visits.ListByTour(ctx, tourID)
	if err != nil {
		return nil, nil, err
	}
	attachFamilies(visits, families)

	s.hub.Emit(tourID, EventFamiliesReordered, map[string]any{
		"tour_id":  tourID,
		"families": families,
		"visits":   visits,
	})

	log.Info().Str("tour_id", tourID).Int("families", len(orders)).Msg("Families reordered")

	return families, visits, nil
}

// Requeue puts a COMPLETED or SKIPPED visit back at the end of the queue as
// PENDING and moves its family to the same position.
func (s *VisitService) Requeue(ctx context.Context, guideID, visitID string) (*models.Visit, error) {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(visit.TourID)
	defer unlock()

	if _, err := ownedTour(ctx, s.tours, guideID, visit.TourID); err != nil {
		return nil, err
	}

	// reload under the lock
	visit, err = s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !visit.Status.Terminal() {
		return nil, fmt.Errorf("visit is %s, only completed or skipped visits can be requeued: %w", visit.Status, models.ErrConflict)
	}

	maxOrder, _, err := s.visits.MaxOrder(ctx, visit.TourID)
	if err != nil {
		return nil, err
	}
	if maxOrder >= math.MaxInt32 {
		return nil, fmt.Errorf("no order left after %d, reorder the tour first: %w", maxOrder, models.ErrConflict)
	}

	visit.Order = maxOrder + 1
	visit.Status = models.VisitPending
	visit.StartedAt = nil
	visit.CompletedAt = nil

	if err := s.visits.Requeue(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to requeue visit: %w", err)
	}

	if family, err := s.families.GetByID(ctx, visit.FamilyID); err == nil {
		visit.Family = family
	}

	s.hub.Emit(visit.TourID, EventVisitRequeued, map[string]any{
		"tour_id": visit.TourID,
		"visit":   visit,
	})

	log.Info().
		Str("tour_id", visit.TourID).
		Str("visit_id", visit.ID).
		Int("order", visit.Order).
		Msg("Visit requeued")

	return visit, nil
}

// NextPending returns the lowest-ordered PENDING visit after the given order, or nil
func (s *VisitService) NextPending(ctx context.Context, tourID string, after int) (*models.Visit, error) {
	return s.visits.NextPending(ctx, tourID, after)
}

// nextToAdvance picks the visit that follows a completed one: the next PENDING
// after its order, otherwise the lowest-ordered PENDING visit left behind.
func (s *VisitService) nextToAdvance(ctx context.Context, tourID string, completedOrder int) (*models.Visit, error) {
	next, err := s.visits.NextPending(ctx, tourID, completedOrder)
	if err != nil || next != nil {
		return next, err
	}
	return s.visits.NextPending(ctx, tourID, minOrder)
}

package services

import (
	"context"
	"fmt"
	"sync"

	"santa-tracker-backend/internal/models"
)

// TourStore persists tours
type TourStore interface {
	Create(ctx context.Context, tour *models.Tour) error
	GetByID(ctx context.Context, id string) (*models.Tour, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Tour, error)
	ListByGuide(ctx context.Context, guideID string) ([]*models.Tour, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	UpdateStatus(ctx context.Context, tour *models.Tour) error
	Delete(ctx context.Context, id string) error
}

// FamilyStore persists families and their children
type FamilyStore interface {
	Create(ctx context.Context, family *models.Family) error
	Update(ctx context.Context, family *models.Family) error
	GetByID(ctx context.Context, id string) (*models.Family, error)
	FindByNameAddress(ctx context.Context, tourID, familyName, streetNumber, streetName string) (*models.Family, error)
	ListByTour(ctx context.Context, tourID string) ([]*models.Family, error)
	ListOptedIn(ctx context.Context, tourID string) ([]*models.Family, error)
	FindOptedInByPhone(ctx context.Context, phone string) (*models.Family, error)
	MaxOrder(ctx context.Context, tourID string) (int, bool, error)
	Reorder(ctx context.Context, tourID string, orders []models.FamilyOrder, includeOpenVisits bool) error
	UpdateCoordinates(ctx context.Context, familyID string, coords *models.Coordinates) error
	Delete(ctx context.Context, id string) error
}

// VisitStore persists visits
type VisitStore interface {
	ReplaceForTour(ctx context.Context, tourID string, visits []*models.Visit) error
	GetByID(ctx context.Context, id string) (*models.Visit, error)
	ListByTour(ctx context.Context, tourID string) ([]*models.Visit, error)
	ListActive(ctx context.Context, tourID string) ([]*models.Visit, error)
	Update(ctx context.Context, visit *models.Visit) error
	Requeue(ctx context.Context, visit *models.Visit) error
	NextPending(ctx context.Context, tourID string, after int) (*models.Visit, error)
	MaxOrder(ctx context.Context, tourID string) (int, bool, error)
	EarliestOpenForFamily(ctx context.Context, familyID string) (*models.Visit, error)
}

// GuideStore persists tour guides
type GuideStore interface {
	Create(ctx context.Context, guide *models.TourGuide) error
	GetByID(ctx context.Context, id string) (*models.TourGuide, error)
	GetByEmail(ctx context.Context, email string) (*models.TourGuide, error)
	UpdatePushToken(ctx context.Context, guideID string, pushToken *string) error
}

// Broadcaster delivers an event to every viewer of a tour room
type Broadcaster interface {
	Emit(tourID, event string, payload any)
}

// TourLocks serializes mutations of a single tour within the process
type TourLocks struct {
	mu    sync.Mutex
	locks map[string]*tourLock
}

type tourLock struct {
	mu   sync.Mutex
	refs int
}

// NewTourLocks creates an empty lock table
func NewTourLocks() *TourLocks {
	return &TourLocks{locks: make(map[string]*tourLock)}
}

// Lock acquires the lock of a tour and returns its release function
func (l *TourLocks) Lock(tourID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[tourID]
	if !ok {
		lk = &tourLock{}
		l.locks[tourID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, tourID)
		}
		l.mu.Unlock()
	}
}

// ownedTour loads a tour and checks it belongs to the guide
func ownedTour(ctx context.Context, tours TourStore, guideID, tourID string) (*models.Tour, error) {
	tour, err := tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if tour.GuideID != guideID {
		return nil, fmt.Errorf("tour belongs to another guide: %w", models.ErrForbidden)
	}
	return tour, nil
}

// attachFamilies sets the Family of every visit from the given families
func attachFamilies(visits []*models.Visit, families []*models.Family) {
	byID := make(map[string]*models.Family, len(families))
	for _, f := range families {
		byID[f.ID] = f
	}
	for _, v := range visits {
		v.Family = byID[v.FamilyID]
	}
}

// withProgress loads the ordered families and visits of a tour into it
func withProgress(ctx context.Context, families FamilyStore, visits VisitStore, tour *models.Tour) (*models.Tour, error) {
	fs, err := families.ListByTour(ctx, tour.ID)
	if err != nil {
		return nil, err
	}
	vs, err := visits.ListByTour(ctx, tour.ID)
	if err != nil {
		return nil, err
	}
	attachFamilies(vs, fs)
	tour.Families = fs
	tour.Visits = vs
	return tour, nil
}

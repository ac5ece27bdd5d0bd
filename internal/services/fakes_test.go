package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"santa-tracker-backend/internal/models"
)

// memDB is an in-memory stand-in for the PostgreSQL repositories. Values are
// copied in and out so services cannot mutate stored rows by accident.
type memDB struct {
	mu       sync.Mutex
	guides   map[string]*models.TourGuide
	tours    map[string]*models.Tour
	families map[string]*models.Family
	visits   map[string]*models.Visit
}

func newMemDB() *memDB {
	return &memDB{
		guides:   make(map[string]*models.TourGuide),
		tours:    make(map[string]*models.Tour),
		families: make(map[string]*models.Family),
		visits:   make(map[string]*models.Visit),
	}
}

func copyTour(t *models.Tour) *models.Tour {
	c := *t
	c.Families, c.Visits = nil, nil
	return &c
}

func copyFamily(f *models.Family) *models.Family {
	c := *f
	c.Children = make([]*models.Child, 0, len(f.Children))
	for _, ch := range f.Children {
		cc := *ch
		c.Children = append(c.Children, &cc)
	}
	return &c
}

func copyVisit(v *models.Visit) *models.Visit {
	c := *v
	c.Family = nil
	return &c
}

type memTours struct{ db *memDB }

func (s memTours) Create(_ context.Context, tour *models.Tour) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.tours[tour.ID] = copyTour(tour)
	return nil
}

func (s memTours) GetByID(_ context.Context, id string) (*models.Tour, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tours[id]
	if !ok {
		return nil, fmt.Errorf("tour not found: %w", models.ErrNotFound)
	}
	return copyTour(t), nil
}

func (s memTours) GetByInviteCode(_ context.Context, code string) (*models.Tour, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tours {
		if t.InviteCode == code {
			return copyTour(t), nil
		}
	}
	return nil, fmt.Errorf("tour not found: %w", models.ErrNotFound)
}

func (s memTours) ListByGuide(_ context.Context, guideID string) ([]*models.Tour, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var tours []*models.Tour
	for _, t := range s.db.tours {
		if t.GuideID == guideID {
			tours = append(tours, copyTour(t))
		}
	}
	sort.Slice(tours, func(i, j int) bool { return tours[i].CreatedAt.After(tours[j].CreatedAt) })
	return tours, nil
}

func (s memTours) InviteCodeExists(_ context.Context, code string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tours {
		if t.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s memTours) UpdateStatus(_ context.Context, tour *models.Tour) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tours[tour.ID]
	if !ok {
		return fmt.Errorf("tour not found: %w", models.ErrNotFound)
	}
	t.Status, t.StartedAt, t.CompletedAt = tour.Status, tour.StartedAt, tour.CompletedAt
	return nil
}

func (s memTours) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tours[id]; !ok {
		return fmt.Errorf("tour not found: %w", models.ErrNotFound)
	}
	delete(s.db.tours, id)
	for fid, f := range s.db.families {
		if f.TourID == id {
			delete(s.db.families, fid)
		}
	}
	for vid, v := range s.db.visits {
		if v.TourID == id {
			delete(s.db.visits, vid)
		}
	}
	return nil
}

type memFamilies struct{ db *memDB }

func (s memFamilies) Create(_ context.Context, family *models.Family) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.families[family.ID] = copyFamily(family)
	return nil
}

func (s memFamilies) Update(_ context.Context, family *models.Family) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.families[family.ID]; !ok {
		return fmt.Errorf("family not found: %w", models.ErrNotFound)
	}
	s.db.families[family.ID] = copyFamily(family)
	return nil
}

func (s memFamilies) GetByID(_ context.Context, id string) (*models.Family, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	f, ok := s.db.families[id]
	if !ok {
		return nil, fmt.Errorf("family not found: %w", models.ErrNotFound)
	}
	return copyFamily(f), nil
}

func (s memFamilies) FindByNameAddress(_ context.Context, tourID, familyName, streetNumber, streetName string) (*models.Family, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, f := range s.db.families {
		if f.TourID == tourID && f.FamilyName == familyName && f.StreetNumber == streetNumber && f.StreetName == streetName {
			return copyFamily(f), nil
		}
	}
	return nil, nil
}

func (s memFamilies) list(match func(*models.Family) bool) []*models.Family {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	families := []*models.Family{}
	for _, f := range s.db.families {
		if match(f) {
			families = append(families, copyFamily(f))
		}
	}
	sort.SliceStable(families, func(i, j int) bool {
		if families[i].Order != families[j].Order {
			return families[i].Order < families[j].Order
		}
		return families[i].CreatedAt.Before(families[j].CreatedAt)
	})
	return families
}

func (s memFamilies) ListByTour(_ context.Context, tourID string) ([]*models.Family, error) {
	return s.list(func(f *models.Family) bool { return f.TourID == tourID }), nil
}

func (s memFamilies) ListOptedIn(_ context.Context, tourID string) ([]*models.Family, error) {
	return s.list(func(f *models.Family) bool {
		return f.TourID == tourID && f.SMSOptIn && len(f.Phones()) > 0
	}), nil
}

func (s memFamilies) FindOptedInByPhone(_ context.Context, phone string) (*models.Family, error) {
	found := s.list(func(f *models.Family) bool {
		if !f.SMSOptIn {
			return false
		}
		for _, p := range f.Phones() {
			if p == phone {
				return true
			}
		}
		return false
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s memFamilies) MaxOrder(_ context.Context, tourID string) (int, bool, error) {
	families := s.list(func(f *models.Family) bool { return f.TourID == tourID })
	if len(families) == 0 {
		return 0, false, nil
	}
	return families[len(families)-1].Order, true, nil
}

func (s memFamilies) Reorder(_ context.Context, tourID string, orders []models.FamilyOrder, includeOpenVisits bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, o := range orders {
		f, ok := s.db.families[o.FamilyID]
		if !ok || f.TourID != tourID {
			continue
		}
		f.Order = o.Order
		if !includeOpenVisits {
			continue
		}
		for _, v := range s.db.visits {
			if v.FamilyID == o.FamilyID && v.TourID == tourID && !v.Status.Terminal() {
				v.Order = o.Order
			}
		}
	}
	return nil
}

func (s memFamilies) UpdateCoordinates(_ context.Context, familyID string, coords *models.Coordinates) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	f, ok := s.db.families[familyID]
	if !ok {
		return fmt.Errorf("family not found: %w", models.ErrNotFound)
	}
	f.Latitude, f.Longitude = nil, nil
	if coords != nil {
		lat, lon := coords.Latitude, coords.Longitude
		f.Latitude, f.Longitude = &lat, &lon
	}
	return nil
}

func (s memFamilies) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.families[id]; !ok {
		return fmt.Errorf("family not found: %w", models.ErrNotFound)
	}
	delete(s.db.families, id)
	for vid, v := range s.db.visits {
		if v.FamilyID == id {
			delete(s.db.visits, vid)
		}
	}
	return nil
}

type memVisits struct{ db *memDB }

func (s memVisits) ReplaceForTour(_ context.Context, tourID string, visits []*models.Visit) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, v := range s.db.visits {
		if v.TourID == tourID {
			delete(s.db.visits, id)
		}
	}
	for _, v := range visits {
		s.db.visits[v.ID] = copyVisit(v)
	}
	return nil
}

func (s memVisits) GetByID(_ context.Context, id string) (*models.Visit, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visits[id]
	if !ok {
		return nil, fmt.Errorf("visit not found: %w", models.ErrNotFound)
	}
	return copyVisit(v), nil
}

func (s memVisits) list(match func(*models.Visit) bool) []*models.Visit {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	visits := []*models.Visit{}
	for _, v := range s.db.visits {
		if match(v) {
			visits = append(visits, copyVisit(v))
		}
	}
	sort.SliceStable(visits, func(i, j int) bool {
		if visits[i].Order != visits[j].Order {
			return visits[i].Order < visits[j].Order
		}
		return visits[i].ID < visits[j].ID
	})
	return visits
}

func (s memVisits) ListByTour(_ context.Context, tourID string) ([]*models.Visit, error) {
	return s.list(func(v *models.Visit) bool { return v.TourID == tourID }), nil
}

func (s memVisits) ListActive(_ context.Context, tourID string) ([]*models.Visit, error) {
	return s.list(func(v *models.Visit) bool { return v.TourID == tourID && v.Status.Active() }), nil
}

func (s memVisits) Update(_ context.Context, visit *models.Visit) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.visits[visit.ID]; !ok {
		return fmt.Errorf("visit not found: %w", models.ErrNotFound)
	}
	s.db.visits[visit.ID] = copyVisit(visit)
	return nil
}

func (s memVisits) Requeue(_ context.Context, visit *models.Visit) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visits[visit.ID]
	if !ok {
		return fmt.Errorf("visit not found: %w", models.ErrNotFound)
	}
	v.Order, v.Status, v.StartedAt, v.CompletedAt = visit.Order, visit.Status, nil, nil
	if f, ok := s.db.families[visit.FamilyID]; ok {
		f.Order = visit.Order
	}
	return nil
}

func (s memVisits) NextPending(_ context.Context, tourID string, after int) (*models.Visit, error) {
	visits := s.list(func(v *models.Visit) bool {
		return v.TourID == tourID && v.Status == models.VisitPending && v.Order > after
	})
	if len(visits) == 0 {
		return nil, nil
	}
	return visits[0], nil
}

func (s memVisits) MaxOrder(_ context.Context, tourID string) (int, bool, error) {
	visits := s.list(func(v *models.Visit) bool { return v.TourID == tourID })
	if len(visits) == 0 {
		return 0, false, nil
	}
	return visits[len(visits)-1].Order, true, nil
}

func (s memVisits) EarliestOpenForFamily(_ context.Context, familyID string) (*models.Visit, error) {
	visits := s.list(func(v *models.Visit) bool {
		return v.FamilyID == familyID && (v.Status == models.VisitPending || v.Status == models.VisitOnWay)
	})
	if len(visits) == 0 {
		return nil, nil
	}
	return visits[0], nil
}

type memGuides struct{ db *memDB }

func (s memGuides) Create(_ context.Context, guide *models.TourGuide) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, g := range s.db.guides {
		if g.Email == guide.Email {
			return fmt.Errorf("email already registered: %w", models.ErrConflict)
		}
	}
	c := *guide
	s.db.guides[guide.ID] = &c
	return nil
}

func (s memGuides) GetByID(_ context.Context, id string) (*models.TourGuide, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.guides[id]
	if !ok {
		return nil, fmt.Errorf("tour guide not found: %w", models.ErrNotFound)
	}
	c := *g
	return &c, nil
}

func (s memGuides) GetByEmail(_ context.Context, email string) (*models.TourGuide, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, g := range s.db.guides {
		if g.Email == email {
			c := *g
			return &c, nil
		}
	}
	return nil, fmt.Errorf("tour guide not found: %w", models.ErrNotFound)
}

func (s memGuides) UpdatePushToken(_ context.Context, guideID string, pushToken *string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.guides[guideID]
	if !ok {
		return fmt.Errorf("tour guide not found: %w", models.ErrNotFound)
	}
	g.PushToken = pushToken
	return nil
}

type emitted struct {
	TourID  string
	Event   string
	Payload any
}

// recordingHub records every emitted event
type recordingHub struct {
	mu     sync.Mutex
	events []emitted
}

func (h *recordingHub) Emit(tourID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, emitted{TourID: tourID, Event: event, Payload: payload})
}

func (h *recordingHub) Events() []emitted {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]emitted(nil), h.events...)
}

func (h *recordingHub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}

// recordingNotifier records notifications instead of texting
type recordingNotifier struct {
	mu      sync.Mutex
	started []string
	onDeck  []string
}

func (n *recordingNotifier) TourStarted(tour *models.Tour) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, tour.ID)
}

func (n *recordingNotifier) OnDeck(_ *models.Tour, family *models.Family, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDeck = append(n.onDeck, family.ID)
}

func (n *recordingNotifier) OnDeckFamilies() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.onDeck...)
}

type sentSMS struct {
	Phone   string
	Message string
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	fail map[string]bool
}

func (f *fakeSMS) Send(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[phone] {
		return fmt.Errorf("carrier rejected %s", phone)
	}
	f.sent = append(f.sent, sentSMS{Phone: phone, Message: message})
	return nil
}

type fakePusher struct {
	pushed chan string
}

func (f *fakePusher) Push(_ context.Context, deviceToken, title, body string) error {
	f.pushed <- deviceToken + "|" + body
	return nil
}

type fakeGeocoder struct {
	mu      sync.Mutex
	coords  *models.Coordinates
	err     error
	queries []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (*models.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, address)
	if g.err != nil || g.coords == nil {
		return nil, g.err
	}
	c := *g.coords
	return &c, nil
}

type fakeArchive struct {
	key  string
	body []byte
}

func (a *fakeArchive) Store(_ context.Context, key, _ string, body []byte) (string, error) {
	a.key, a.body = key, body
	return "https://exports.example.com/" + key + "?sig=abc", nil
}

// fixture wires services to one in-memory database
type fixture struct {
	db       *memDB
	hub      *recordingHub
	notifier *recordingNotifier
	visits   *VisitService
	tours    *TourService
	families *FamilyService
	geocoder *fakeGeocoder
	archive  *fakeArchive
	clock    time.Time
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:       db,
		hub:      &recordingHub{},
		notifier: &recordingNotifier{},
		geocoder: &fakeGeocoder{},
		archive:  &fakeArchive{},
		clock:    time.Date(2025, 12, 24, 18, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	f.visits = NewVisitService(memTours{db}, memFamilies{db}, memVisits{db}, f.hub, f.notifier)
	f.visits.now = now
	f.tours = NewTourService(memTours{db}, memFamilies{db}, memVisits{db}, f.hub, f.geocoder, f.archive)
	f.tours.now = now
	f.tours.geocodeEvery = time.Millisecond
	f.families = NewFamilyService(memTours{db}, memFamilies{db}, f.hub, f.geocoder)
	f.families.now = now
	return f
}

const (
	guideID      = "guide-1"
	otherGuideID = "guide-2"
)

// seedTour stores a PLANNED tour with one family per name, ordered as given
func (f *fixture) seedTour(names ...string) (*models.Tour, []*models.Family) {
	tour := &models.Tour{
		ID:         "tour-1",
		GuideID:    guideID,
		Name:       "Maple Street Tour",
		City:       "Springfield",
		State:      "IL",
		ZipCode:    "62701",
		Status:     models.TourPlanned,
		InviteCode: "ABC234",
		CreatedAt:  f.clock,
	}
	_ = memTours{f.db}.Create(context.Background(), tour)

	var families []*models.Family
	for i, name := range names {
		family := &models.Family{
			ID:           "family-" + name,
			TourID:       tour.ID,
			StreetNumber: fmt.Sprintf("%d", 100+i),
			StreetName:   "Maple St",
			FamilyName:   name,
			Order:        i,
			CreatedAt:    f.clock.Add(time.Duration(i) * time.Second),
			Children:     []*models.Child{{ID: "child-" + name, FamilyID: "family-" + name, FirstName: "Kid " + name}},
		}
		_ = memFamilies{f.db}.Create(context.Background(), family)
		families = append(families, family)
	}
	return tour, families
}

// visitOf returns the stored visit of a family
func (f *fixture) visitOf(familyID string) *models.Visit {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, v := range f.db.visits {
		if v.FamilyID == familyID {
			return copyVisit(v)
		}
	}
	return nil
}

func (f *fixture) familyOrder(familyID string) int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.families[familyID].Order
}
